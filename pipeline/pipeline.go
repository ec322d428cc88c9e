package pipeline

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/phishdesk/email-triage/parsers/common"
	"github.com/phishdesk/email-triage/parsers/fallback"
	"github.com/phishdesk/email-triage/parsers/msgfile"
	"github.com/phishdesk/email-triage/parsers/rfc822"
	"github.com/phishdesk/email-triage/pkg/email"
)

// AttemptStatus is the outcome of one strategy invocation.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// Attempt captures the outcome of one parser strategy. The ordered attempt
// list is the audit trail of a parse operation and is persisted downstream.
type Attempt struct {
	Name         string
	Version      string
	Status       AttemptStatus
	ErrorMessage string
}

// Outcome is the orchestrator's single return contract: the normalized
// record when any strategy succeeded, plus every attempt made. A record-less
// outcome always carries at least one attempt explaining why.
type Outcome struct {
	Email    *email.ParsedEmail
	Attempts []Attempt
}

// Capabilities says which optional parser dependencies are present. It is
// computed once at startup and injected, so the strategy-list builder stays
// free of probing.
type Capabilities struct {
	ContainerParser    bool
	FallbackMIMEParser bool
}

// AllCapabilities reports every optional parser as installed.
func AllCapabilities() Capabilities {
	return Capabilities{ContainerParser: true, FallbackMIMEParser: true}
}

// Strategy is one named, versioned parser implementation. Parse returns a
// record or raises; the runner converts failures into attempt entries.
type Strategy struct {
	Name    string
	Version string
	Parse   func(Candidate) (*email.ParsedEmail, error)
}

// Runner owns the ordered strategy lists per detected format.
type Runner struct {
	caps   Capabilities
	region string
}

// NewRunner builds a runner with the given capability flags. defaultRegion
// applies to phone extraction for numbers without a country code.
func NewRunner(caps Capabilities, defaultRegion string) *Runner {
	return &Runner{caps: caps, region: defaultRegion}
}

// Run tries each applicable strategy in order. First success wins; every
// failure becomes a failed attempt; parser-level panics or errors never
// propagate past this boundary. A candidate that does not resemble an email
// at all is short-circuited with a single content_sniffer attempt.
func (r *Runner) Run(candidate Candidate) Outcome {
	var attempts []Attempt

	if candidate.Format != FormatContainer && !LooksLikeEmail(candidate.Data) {
		attempts = append(attempts, Attempt{
			Name:         "content_sniffer",
			Version:      "1.0.0",
			Status:       AttemptFailed,
			ErrorMessage: "payload does not resemble an email message",
		})
		return Outcome{Attempts: attempts}
	}

	strategies := r.strategiesFor(candidate.Format)
	if len(strategies) == 0 {
		attempts = append(attempts, Attempt{
			Name:         "strategy_selection",
			Version:      "1.0.0",
			Status:       AttemptFailed,
			ErrorMessage: common.NewUnavailableError(fmt.Sprintf("%s parser", candidate.Format)).Error(),
		})
		return Outcome{Attempts: attempts}
	}

	for _, strategy := range strategies {
		parsed, err := r.invoke(strategy, candidate)
		if err != nil {
			log.Debugf("Parser %s failed for %s: %v", strategy.Name, filepath.Base(candidate.Path), err)
			attempts = append(attempts, Attempt{
				Name:         strategy.Name,
				Version:      strategy.Version,
				Status:       AttemptFailed,
				ErrorMessage: err.Error(),
			})
			continue
		}

		attempts = append(attempts, Attempt{
			Name:    strategy.Name,
			Version: strategy.Version,
			Status:  AttemptSuccess,
		})
		return Outcome{Email: parsed, Attempts: attempts}
	}

	return Outcome{Attempts: attempts}
}

// invoke shields the runner from panicking strategies; a panic is reported
// as an ordinary strategy failure.
func (r *Runner) invoke(strategy Strategy, candidate Candidate) (parsed *email.ParsedEmail, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			parsed = nil
			err = fmt.Errorf("parser panic: %v", rec)
		}
	}()
	return strategy.Parse(candidate)
}

// strategiesFor returns the fixed, deterministic strategy order for a
// format. MIME candidates get the primary parser then the optional fallback;
// container candidates get the container parser when installed; unknown
// candidates are offered every format-agnostic strategy.
func (r *Runner) strategiesFor(format Format) []Strategy {
	var strategies []Strategy

	if format == FormatMIME || format == FormatUnknown {
		primary := rfc822.NewParser(r.region)
		strategies = append(strategies, Strategy{
			Name:    "rfc822",
			Version: rfc822.Version,
			Parse: func(c Candidate) (*email.ParsedEmail, error) {
				return primary.Parse(c.Data)
			},
		})

		if r.caps.FallbackMIMEParser {
			secondary := fallback.NewParser(r.region)
			strategies = append(strategies, Strategy{
				Name:    "enmime_fallback",
				Version: fallback.Version,
				Parse: func(c Candidate) (*email.ParsedEmail, error) {
					return secondary.Parse(c.Data)
				},
			})
		}
	}

	if (format == FormatContainer || format == FormatUnknown) && r.caps.ContainerParser {
		container := msgfile.NewParser(r.region)
		strategies = append(strategies, Strategy{
			Name:    "msg_container",
			Version: msgfile.Version,
			Parse: func(c Candidate) (*email.ParsedEmail, error) {
				return container.Parse(c.Data)
			},
		})
	}

	return strategies
}
