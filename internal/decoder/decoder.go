// Package decoder drives the full P25 voice decode pipeline: frame
// parsing, LDU2 encryption-sync extraction, IMBE deinterleave,
// optional decryption, vocoder synthesis, and PCM accumulation.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gopher2/trunk-decoder/internal/cipher"
	"github.com/gopher2/trunk-decoder/internal/frame"
	"github.com/gopher2/trunk-decoder/internal/imbe"
	"github.com/gopher2/trunk-decoder/internal/ldu2"
	"github.com/gopher2/trunk-decoder/internal/wav"
)

// SampleSink receives PCM samples as the pipeline produces them. The
// wav.Writer satisfies this; tests can substitute a simple recorder.
type SampleSink interface {
	WriteSamples(samples []int16) error
}

// CallMetadata is the decoder-computed half of a call's metadata;
// the caller merges it with any caller-supplied JSON via the
// metadata package.
type CallMetadata struct {
	NAC                uint16
	TotalFrames        int
	VoiceFrames        int
	HasEncryptedFrames bool
	StartTime          time.Time
	EndTime            time.Time
	CallLengthSeconds  float64
	AudioType          string

	// TruncatedPayloadWarnings counts a capture that ended early
	// because a frame header or a declared payload length ran past
	// EOF — the pipeline still finalizes normally, per the short-read
	// edge case.
	TruncatedPayloadWarnings int
}

// Pipeline owns one vocoder instance and one cipher engine set for
// its entire lifetime — never shared across concurrent calls, per the
// ownership contract every component in this chain follows. A worker
// creates exactly one Pipeline on first use and reuses it, via Reset,
// for every subsequent call it processes.
type Pipeline struct {
	keys    *cipher.KeyTable
	vocoder imbe.Vocoder
	ciphers *cipher.CipherSet

	cipherActive bool
	cipherFamily cipher.Family

	nac     uint16
	nacSeen bool

	now func() time.Time
}

// New returns a Pipeline reading key material from keys. keys may be
// mutated by the caller before workers start processing; the
// Pipeline only reads from it.
func New(keys *cipher.KeyTable) *Pipeline {
	return &Pipeline{
		keys:    keys,
		vocoder: imbe.NewVocoder(),
		ciphers: cipher.NewCipherSet(keys),
		now:     time.Now,
	}
}

// Reset clears per-call state (cipher activation, observed NAC)
// between captures. The vocoder and cipher engines are left in
// place — their internal buffers are overwritten by the next
// Prepare/Decode call, not reallocated.
func (p *Pipeline) Reset() {
	p.cipherActive = false
	p.cipherFamily = 0
	p.nac = 0
	p.nacSeen = false
}

// Decode reads frames from src until clean EOF, driving the full
// voice pipeline and writing PCM to sink as it is produced. It
// returns the decoder-computed call metadata.
//
// Decode checks ctx before reading each frame and returns ctx.Err()
// as soon as it is done, so a caller enforcing a deadline (the job
// queue's per-job timeout) can rely on this call returning promptly
// after cancellation rather than running to completion on an
// abandoned worker — the pipeline must never still be decoding when
// its owning worker moves on to the next job.
func (p *Pipeline) Decode(ctx context.Context, src io.Reader, sink SampleSink) (CallMetadata, error) {
	p.Reset()
	meta := CallMetadata{AudioType: "digital"}
	meta.StartTime = p.now()

	r := frame.NewReader(src)
	var sampleCount int64

	for {
		if err := ctx.Err(); err != nil {
			return meta, err
		}

		f, err := r.Next()
		if err != nil {
			if errors.Is(err, frame.ErrTruncatedPayload) || errors.Is(err, frame.ErrTruncatedHeader) {
				meta.TruncatedPayloadWarnings++
				log.Printf("decoder: capture ended on a short read, finalizing normally: %v", err)
				break
			}
			return meta, fmt.Errorf("decoder: %w", err)
		}
		if f == nil {
			break // clean EOF
		}

		meta.TotalFrames++
		if !p.nacSeen && f.NAC != 0 {
			p.nac = f.NAC
			p.nacSeen = true
		}

		switch f.Kind {
		case frame.KindLDU2:
			p.handleLDU2(f, &meta)
			samples := p.decodeVoiceFrame(f.Payload, true)
			if err := sink.WriteSamples(samples); err != nil {
				return meta, fmt.Errorf("decoder: write samples: %w", err)
			}
			sampleCount += int64(len(samples))
		case frame.KindLDU1:
			meta.VoiceFrames++
			samples := p.decodeVoiceFrame(f.Payload, false)
			if err := sink.WriteSamples(samples); err != nil {
				return meta, fmt.Errorf("decoder: write samples: %w", err)
			}
			sampleCount += int64(len(samples))
		default:
			// Non-voice frames are counted and otherwise passed
			// through; TrunkingSignalBlock frames are tagged but not
			// interpreted beyond that, per the Non-goal on TSBK content.
		}
	}

	meta.NAC = p.nac
	meta.EndTime = p.now()
	meta.CallLengthSeconds = float64(sampleCount) / 8000.0
	return meta, nil
}

// handleLDU2 extracts the encryption sync, updates has_encrypted and
// prepares (or disables) the active cipher per the spec's transition
// table, and counts this LDU2 as a voice frame.
func (p *Pipeline) handleLDU2(f *frame.Frame, meta *CallMetadata) {
	meta.VoiceFrames++

	sync := ldu2.Extract(f.Payload)
	f.AlgorithmID = sync.AlgorithmID
	f.KeyID = sync.KeyID
	f.MessageIndicator = sync.MessageIndicator

	if !sync.IsEncrypted {
		p.cipherActive = false
		return
	}

	meta.HasEncryptedFrames = true
	family, ready, err := p.ciphers.Prepare(sync.AlgorithmID, sync.KeyID, sync.MessageIndicator)
	switch {
	case err == nil && ready:
		p.cipherActive = true
		p.cipherFamily = family
	case errors.Is(err, cipher.ErrUnknownKey):
		// Key unknown: voice still flows through the vocoder,
		// producing unintelligible output. The pipeline does not abort.
		p.cipherActive = false
		log.Printf("decoder: LDU2 carries unrecognized key_id %d for algorithm 0x%02X; decrypting disabled for following voice frames",
			sync.KeyID, sync.AlgorithmID)
	default:
		p.cipherActive = false
	}
}

// decodeVoiceFrame runs the IMBE deinterleave (and decryption, if an
// engine is active) over a voice frame's nine words and returns the
// concatenated 1440 PCM samples, zero-padding for any word the
// payload was too short to supply.
func (p *Pipeline) decodeVoiceFrame(payload []byte, isLDU2 bool) []int16 {
	words, full := imbe.ExtractRawWords(payload)

	out := make([]int16, 0, imbe.WordsPerVoiceFrame*imbe.PCMSamplesPerWord)
	for slot := 0; slot < imbe.WordsPerVoiceFrame; slot++ {
		if slot >= full {
			var silence [imbe.PCMSamplesPerWord]int16
			out = append(out, silence[:]...)
			continue
		}

		raw := words[slot]
		if p.cipherActive {
			data := raw[:]
			p.ciphers.DecryptCodeword(p.cipherFamily, data, isLDU2, slot)
		}

		cw := imbe.Deinterleave(raw, slot)
		samples := p.vocoder.Decode(cw, slot)
		out = append(out, samples[:]...)
	}
	return out
}

var _ SampleSink = (*wav.Writer)(nil)
