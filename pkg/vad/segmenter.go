package vad

import "log/slog"

// Batch segmentation state machine.
//
// Frames are classified against the open threshold; silence only counts
// below threshold−0.15, so probabilities in between keep an open segment
// alive without advancing silence accounting. Segments longer than the
// max-speech cap are split at the last confirmed silence checkpoint
// (prevEnd/nextStart), or hard-cut when none was seen.

// advanceBatch consumes the probability of the frame that ends at
// d.currentSample and updates the machine.
func (d *Detector) advanceBatch(prob float32) {
	t := d.currentSample - uint64(d.window) // start-of-frame sample

	if prob >= d.cfg.Threshold {
		if d.tempEnd != 0 {
			d.tempEnd = 0
			if d.nextStart < d.prevEnd {
				d.nextStart = t
			}
		}

		if !d.triggered {
			d.triggered = true
			d.open = &openSegment{startSample: t}
			d.open.confSum += float64(prob)
			d.open.frameCount++
			slog.Debug("speech start", slog.Uint64("sample", t))
			return
		}
	}

	if d.triggered && d.open != nil {
		d.open.confSum += float64(prob)
		d.open.frameCount++
	}

	// Max-speech split.
	if d.triggered && d.open != nil && d.currentSample-d.open.startSample > d.cfg.maxSpeechSamples() {
		if d.prevEnd > 0 {
			start := d.open.startSample
			d.emitSegment(start, d.prevEnd)
			if d.nextStart >= d.prevEnd {
				// The silence run was interrupted by speech again;
				// continue in a fresh segment.
				d.open = &openSegment{startSample: d.nextStart}
			} else {
				d.open = nil
				d.triggered = false
			}
			d.prevEnd, d.nextStart, d.tempEnd = 0, 0, 0
		} else {
			d.emitSegment(d.open.startSample, d.currentSample)
			d.open = nil
			d.triggered = false
			d.prevEnd, d.nextStart, d.tempEnd = 0, 0, 0
			return
		}
	}

	// Hysteretic silence.
	if prob < d.cfg.Threshold-hysteresisGap && d.triggered {
		if d.tempEnd == 0 {
			d.tempEnd = d.currentSample
		}
		if d.currentSample-d.tempEnd > d.cfg.silenceAtMaxSpeechSamples() {
			d.prevEnd = d.tempEnd
		}
		if d.currentSample-d.tempEnd < d.cfg.minSilenceSamples() {
			return
		}

		if d.open != nil && d.tempEnd-d.open.startSample > d.cfg.minSpeechSamples() {
			d.emitSegment(d.open.startSample, d.tempEnd)
		} else {
			slog.Debug("dropping short speech run",
				slog.Uint64("start", d.open.startSample),
				slog.Uint64("end", d.tempEnd))
		}
		d.open = nil
		d.triggered = false
		d.prevEnd, d.nextStart, d.tempEnd = 0, 0, 0
	}
}

// emitSegment closes [startSample, endSample) and appends it to the
// emitted list. The batch machine applies no speech padding; padding is a
// streaming-emitter concern.
func (d *Detector) emitSegment(startSample, endSample uint64) {
	rate := float32(d.cfg.SampleRate)
	seg := Segment{
		StartTime: float32(startSample) / rate,
		EndTime:   float32(endSample) / rate,
		IsSpeech:  true,
	}
	if d.open != nil && d.open.frameCount > 0 {
		conf := d.open.confSum / float64(d.open.frameCount)
		if conf > 1 {
			conf = 1
		}
		seg.Confidence = float32(conf)
	}
	d.segments = append(d.segments, seg)
	slog.Debug("speech segment",
		slog.Float64("startAt", float64(seg.StartTime)),
		slog.Float64("endAt", float64(seg.EndTime)))
}
