package core

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/model"
)

// CompressResult reports the effect of a compression pass. Ratio is
// compressed bytes over original bytes for the entries touched; 1 when
// nothing was compressed.
type CompressResult struct {
	Compressed int     `json:"compressed"`
	Ratio      float64 `json:"ratio"`
}

// Compress reduces the payload footprint of aged active and
// consolidated entries in the selected tiers. Embeddings are left
// untouched, so retrieval ranking is unaffected. Entries whose payload
// would not shrink are skipped, not errors.
func (c *Core) Compress(tier model.Tier) (CompressResult, error) {
	if tier != "" && !model.ValidTiers[tier] {
		return CompressResult{Ratio: 1}, fmt.Errorf("%w: tier %q", model.ErrValidation, tier)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var origTotal, compTotal int
	res := CompressResult{Ratio: 1}
	for _, t := range tiersFor(tier) {
		r, o, cp, err := c.compressTierTotals(t)
		res.Compressed += r.Compressed
		origTotal += o
		compTotal += cp
		if err != nil {
			return res, err
		}
	}
	if origTotal > 0 {
		res.Ratio = float64(compTotal) / float64(origTotal)
	}
	return res, nil
}

// compressTier is the threshold-trigger entry point. Caller holds the
// write lock.
func (c *Core) compressTier(tier model.Tier) (CompressResult, error) {
	res, orig, comp, err := c.compressTierTotals(tier)
	if orig > 0 {
		res.Ratio = float64(comp) / float64(orig)
	}
	return res, err
}

func (c *Core) compressTierTotals(tier model.Tier) (CompressResult, int, int, error) {
	res := CompressResult{Ratio: 1}
	alg := c.cfg.Compression.Algorithm
	level := c.cfg.Compression.Level
	if alg != "brotli" && alg != "gzip" {
		return res, 0, 0, fmt.Errorf("%w: unknown algorithm %q", model.ErrCompression, alg)
	}

	cutoff := time.Now().UTC().Add(-c.cfg.Compression.MinAge)
	var origTotal, compTotal int
	for _, e := range c.state.Memories[tier] {
		if e.State != model.StateActive && e.State != model.StateConsolidated {
			continue
		}
		if e.CreatedAt.After(cutoff) {
			continue
		}
		orig := []byte(e.Content)
		comp, err := encodePayload(alg, level, orig)
		if err != nil {
			return res, origTotal, compTotal, fmt.Errorf("%w: %s: %v", model.ErrCompression, alg, err)
		}
		if len(comp) >= len(orig) {
			// Already minimal; compressing would grow the payload.
			continue
		}
		e.Payload = comp
		e.Content = ""
		e.State = model.StateCompressed
		e.Compression = &model.CompressionInfo{
			Algorithm:     alg,
			Level:         level,
			Ratio:         float64(len(comp)) / float64(len(orig)),
			OriginalBytes: len(orig),
		}
		origTotal += len(orig)
		compTotal += len(comp)
		res.Compressed++
	}
	if res.Compressed > 0 {
		res.Ratio = float64(compTotal) / float64(origTotal)
		c.log.Info("compressed tier",
			zap.String("tier", string(tier)),
			zap.String("algorithm", alg),
			zap.Int("compressed", res.Compressed),
			zap.Float64("ratio", res.Ratio))
	}
	return res, origTotal, compTotal, nil
}

// encodePayload compresses data at the configured level. Levels 0–9
// map directly onto gzip; brotli accepts the same range (its 10–11
// qualities trade too much CPU for this workload).
func encodePayload(alg string, level int, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch alg {
	case "brotli":
		w = brotli.NewWriterLevel(&buf, level)
	case "gzip":
		gw, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, err
		}
		w = gw
	default:
		return nil, fmt.Errorf("unknown algorithm %q", alg)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePayload recovers a compressed entry's content. Uncompressed
// entries return their content unchanged.
func DecodePayload(e *model.MemoryEntry) (string, error) {
	if e.Compression == nil {
		return e.Content, nil
	}
	var r io.Reader
	switch e.Compression.Algorithm {
	case "brotli":
		r = brotli.NewReader(bytes.NewReader(e.Payload))
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(e.Payload))
		if err != nil {
			return "", fmt.Errorf("%w: gzip: %v", model.ErrCompression, err)
		}
		defer gr.Close()
		r = gr
	default:
		return "", fmt.Errorf("%w: unknown algorithm %q", model.ErrCompression, e.Compression.Algorithm)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: decode: %v", model.ErrCompression, err)
	}
	return string(data), nil
}
