// Package guard implements the moderation pipeline: ordered heuristic spam checks,
// toxic-content and sensitive-topic classification for text, and a separate
// image/video/gif path over extracted frames. The pipeline is terminal on the first
// verdict and fails open on any external-capability error.
//
// Callers must not invoke the pipeline for room administrators, the exemption is
// the caller's responsibility.
package guard

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/umputun/chat-guard/lib/guard/plugin"
	"github.com/umputun/chat-guard/lib/modcheck"
)

// Detector runs the multi-stage moderation pipeline, thread-safe.
// External classification calls are made without holding any internal lock.
type Detector struct {
	Config
	gateway   *gateway
	repeats   *repeatCache
	extractor *FrameExtractor
	plugins   []namedCheck
}

// Config is a set of parameters for Detector.
type Config struct {
	RepeatThreshold int           // identical messages within the window to flag, default 3
	RepeatWindow    time.Duration // sliding window for the repeat check, default 60s
	FrameCount      int           // frames extracted per video/gif, default 4
	MinTopicLen     int           // min text length for topic classification, default 20
}

type namedCheck struct {
	name  string
	check plugin.Check
}

// NewDetector makes a Detector with the given config, without a classification
// gateway. Until WithOpenAI is called only the heuristic checks run.
func NewDetector(cfg Config) *Detector {
	if cfg.RepeatThreshold == 0 {
		cfg.RepeatThreshold = repeatThreshold
	}
	if cfg.RepeatWindow == 0 {
		cfg.RepeatWindow = repeatWindowSecs * time.Second
	}
	if cfg.MinTopicLen == 0 {
		cfg.MinTopicLen = minTopicCheckable
	}
	return &Detector{
		Config:    cfg,
		repeats:   newRepeatCache(cfg.RepeatThreshold, cfg.RepeatWindow),
		extractor: NewFrameExtractor(cfg.FrameCount),
	}
}

// WithOpenAI attaches the external classification capability to the pipeline.
func (d *Detector) WithOpenAI(client OpenAIClient, params GatewayConfig) *Detector {
	d.gateway = newGateway(client, params)
	return d
}

// WithPlugins loads Lua plugin checks from the given directory. Plugin checks run
// after the built-in heuristics and before external classification.
func (d *Detector) WithPlugins(checker *plugin.Checker) *Detector {
	checks := checker.GetAllChecks()
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic evaluation order
	for _, name := range names {
		d.plugins = append(d.plugins, namedCheck{name: name, check: checks[name]})
	}
	return d
}

// Check classifies a single message and returns at most one verdict, nil for clean
// messages. If the message carries media, the media path is evaluated first and a
// media verdict short-circuits the text path entirely.
func (d *Detector) Check(ctx context.Context, req modcheck.Request) *modcheck.Verdict {
	if req.Media != nil {
		if v := d.checkMedia(ctx, req); v != nil {
			log.Printf("[INFO] media verdict for %s: %s", req.UserID, v)
			return v
		}
	}
	return d.checkText(ctx, req)
}

func (d *Detector) checkText(ctx context.Context, req modcheck.Request) *modcheck.Verdict {
	if v := d.checkHeuristics(req); v != nil {
		return v
	}

	for _, pc := range d.plugins {
		if v := pc.check(req); v != nil {
			return v
		}
	}

	if len([]rune(req.Text)) < minCheckedLen {
		return nil // too short for external classification as well
	}

	if v := d.gateway.classifyText(ctx, req.Text); v != nil {
		return v
	}

	if len([]rune(req.Text)) > d.MinTopicLen {
		if v := d.gateway.classifyTopic(ctx, req.Text); v != nil {
			return v
		}
	}
	return nil
}

func (d *Detector) checkMedia(ctx context.Context, req modcheck.Request) *modcheck.Verdict {
	frames := d.extractor.Extract(ctx, req.Media.Kind, req.Media.Data)
	if len(frames) == 0 {
		return nil // extraction impossible, skip media analysis
	}

	v := d.gateway.classifyMedia(ctx, frames)
	if v == nil {
		return nil
	}

	switch req.Media.Kind {
	case modcheck.MediaVideo:
		v.Kind = modcheck.SensitiveVideo
	case modcheck.MediaGIF:
		v.Kind = modcheck.SensitiveGIF
	default:
		v.Kind = modcheck.SensitiveImage
	}
	v.Reason = fmt.Sprintf("sensitive %s content", req.Media.Kind)
	return v
}

// SetTopicPrompt replaces the sensitive-topic system prompt, used by the dynamic
// prompt-file reload.
func (d *Detector) SetTopicPrompt(prompt string) {
	if d.gateway == nil {
		return
	}
	d.gateway.setTopicPrompt(prompt)
}
