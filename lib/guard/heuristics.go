package guard

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/forPelevin/gomoji"

	"github.com/umputun/chat-guard/lib/modcheck"
)

// heuristic thresholds, fixed by the decision policy
const (
	minCheckedLen     = 5   // messages shorter than this are never evaluated
	maxLinks          = 3   // more than this is a violation
	minCapsAlphaLen   = 10  // caps ratio evaluated only on messages with at least this many letters
	capsRatioLimit    = 0.7 // uppercase ratio above this is a violation
	repeatThreshold   = 3   // identical messages within the window to trigger
	repeatWindowSecs  = 60  // sliding window for repeats, seconds
	minTopicCheckable = 20  // topic classification applied only above this length
)

var linkRe = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

// checkHeuristics runs the stateless spam checks in fixed order, first match wins.
// The repeat check is the only stateful one and mutates the shared repeat cache.
// Returns nil when nothing triggers.
func (d *Detector) checkHeuristics(req modcheck.Request) *modcheck.Verdict {
	if len([]rune(req.Text)) < minCheckedLen {
		return nil
	}

	if v := checkLinks(req.Text); v != nil {
		return v
	}
	if v := checkCaps(req.Text); v != nil {
		return v
	}
	// check-only requests observe the streak without recording the message
	track := d.repeats.track
	if req.CheckOnly {
		track = d.repeats.peek
	}
	if count := track(req.UserID, req.RoomID, req.Text); d.repeats.exceeded(count) {
		return &modcheck.Verdict{
			Kind:     modcheck.RepeatedMessage,
			Severity: modcheck.Medium,
			Reason:   fmt.Sprintf("same message repeated %d times within %ds", count, repeatWindowSecs),
		}
	}
	return nil
}

func checkLinks(text string) *modcheck.Verdict {
	count := len(linkRe.FindAllString(text, -1))
	if count <= maxLinks {
		return nil
	}
	return &modcheck.Verdict{
		Kind:     modcheck.ExcessiveLinks,
		Severity: modcheck.Medium,
		Reason:   fmt.Sprintf("too many links: %d", count),
	}
}

// checkCaps flags shouting. Emojis are stripped first so that emoji-heavy but
// otherwise normal messages don't skew the letter ratio.
func checkCaps(text string) *modcheck.Verdict {
	cleaned := gomoji.RemoveEmojis(text)
	var letters, upper int
	for _, r := range cleaned {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters < minCapsAlphaLen {
		return nil
	}
	ratio := float64(upper) / float64(letters)
	if ratio <= capsRatioLimit {
		return nil
	}
	return &modcheck.Verdict{
		Kind:     modcheck.ExcessiveCaps,
		Severity: modcheck.Low,
		Reason:   fmt.Sprintf("uppercase ratio %.2f over %d letters", ratio, letters),
	}
}
