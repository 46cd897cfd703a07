// SPDX-License-Identifier: MIT
package cmd

import (
	"affect/internal/audio"
	"affect/internal/config"
	"affect/internal/log"
	"affect/internal/session"
	"affect/internal/transport"
	"context"
	"errors"
	"fmt"
	"io"
)

// runFile streams a WAV file through a session in capture-sized chunks and
// prints every updated distribution, stamped with its position in the file.
func runFile(ctx context.Context, cfg *config.Config, path string, w io.Writer) error {
	src, err := audio.OpenWAV(path)
	if err != nil {
		return err
	}
	defer src.Close()

	model, err := loadClassifier(cfg)
	if err != nil {
		return err
	}
	sess, err := session.New(cfg.Session(), model)
	if err != nil {
		return err
	}
	// The file's own rate wins over the configured capture rate.
	if err := sess.Initialize(src.SampleRate()); err != nil {
		return err
	}
	log.Infof("Analysing %s: %.0f Hz, %d channel(s), %d samples per analysis window",
		path, src.SampleRate(), src.Channels(), sess.TargetChunkSize())

	return classifyStream(ctx, sess, src, cfg.Audio.FramesPerBuffer, w)
}

// sampleReader is satisfied by *audio.WAVSource.
type sampleReader interface {
	Read(dst []float64) (int, error)
}

// classifyStream feeds r to sess chunk by chunk and writes one line per
// updated result.
func classifyStream(ctx context.Context, sess *session.Session, r sampleReader, chunkSize int, w io.Writer) error {
	if target := sess.TargetChunkSize(); chunkSize > target {
		return fmt.Errorf("frames_per_buffer %d exceeds the %d-sample analysis chunk at %.0f Hz",
			chunkSize, target, sess.SampleRate())
	}
	chunk := make([]float64, chunkSize)
	consumed := 0
	updates := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		consumed += n

		res, err := sess.ProcessChunk(ctx, chunk[:n])
		if err != nil {
			return err
		}
		switch {
		case res.Kind == session.Failed:
			return res.Err
		case res.Skipped != nil && !res.Updated && res.Kind == session.Ready:
			log.Debugf("%8.2fs skipped: %v", seconds(consumed, sess), res.Skipped)
		}
		if !res.Updated {
			continue
		}

		updates++
		label, p, _ := res.Top()
		fmt.Fprintf(w, "%8.2fs  %-10s %5.1f%%  %s\n", seconds(consumed, sess), label, p*100,
			transport.FormatDistribution(res.Labels, res.Probabilities))
	}

	if updates == 0 {
		return fmt.Errorf("no complete analysis window: read %d samples, need %d", consumed, sess.TargetChunkSize())
	}
	return nil
}

func seconds(samples int, sess *session.Session) float64 {
	return float64(samples) / sess.SampleRate()
}
