// Package producer defines the content-producer boundary: external services
// that turn a prompt into text, images, or a video. The core treats each
// producer as a single function call with an independent timeout and no shared
// state; any transport or decoding problem is converted into a *Failure value
// and never propagates as an unhandled fault.
package producer

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Request carries the resolved input parameters for one producer invocation.
// All fields originate from validated client input except SourceImageURL,
// which the orchestrator fills in for image-to-video flows.
type Request struct {
	// AssetType is the asset content category: Item, Weapon, NPC, or Location.
	AssetType string
	// Genre is the setting/style the asset belongs to (e.g. "Cyberpunk").
	Genre string
	// Details is the user's free-form description of the asset.
	Details string
	// SourceImageURL optionally points at a previously produced image the
	// video producer should animate. Empty for independent invocations.
	SourceImageURL string
}

// Output is the tagged result variant of a successful production. Exactly one
// concrete type is returned per producer: TextOutput, ImageSetOutput, or
// VideoOutput.
type Output interface{ producerOutput() }

// TextOutput is a produced lore text, already stripped of markdown decoration.
type TextOutput struct{ Content string }

// ImageSetOutput is an ordered list of produced image URLs.
type ImageSetOutput struct{ URLs []string }

// VideoOutput is a single produced video URL.
type VideoOutput struct{ URL string }

func (TextOutput) producerOutput()     {}
func (ImageSetOutput) producerOutput() {}
func (VideoOutput) producerOutput()    {}

// Producer is the contract every content producer adapter implements.
// Produce performs exactly one attempt: it either returns an Output or a
// *Failure error. Implementations own their timeout via their HTTP client
// and must honor ctx cancellation.
type Producer interface {
	// Name identifies the producer in failures, logs, and metrics.
	Name() string
	Produce(ctx context.Context, req Request) (Output, error)
}

// Failure is the explicit per-producer failure marker. It is recorded as an
// absent output field by the orchestrator and does not fail the whole request.
// Timeout distinguishes upstream timeouts for observability only; control
// flow treats both arms identically.
type Failure struct {
	Producer string
	Reason   string
	Timeout  bool
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Timeout {
		return fmt.Sprintf("%s producer timed out: %s", f.Producer, f.Reason)
	}
	return fmt.Sprintf("%s producer failed: %s", f.Producer, f.Reason)
}

// AsFailure extracts a *Failure from err, if it wraps one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// failed builds a *Failure for name, classifying context deadlines and
// net timeouts so dashboards can tell slow upstreams from broken ones.
func failed(name string, err error) *Failure {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var ne net.Error
	if !timeout && errors.As(err, &ne) && ne.Timeout() {
		timeout = true
	}
	return &Failure{Producer: name, Reason: err.Error(), Timeout: timeout}
}

// failf builds a non-timeout *Failure from a format string.
func failf(name, format string, args ...any) *Failure {
	return &Failure{Producer: name, Reason: fmt.Sprintf(format, args...)}
}
