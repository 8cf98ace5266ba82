package ttlstash

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProbeKey is the sentinel written and removed by the prober.
const ProbeKey = "__storage-init-test__"

// ProbeResult is the outcome of an availability probe.
type ProbeResult struct {
	// Err is nil when the engine is usable.
	Err *Error
}

// OK reports whether the probe succeeded.
func (r ProbeResult) OK() bool {
	return r.Err == nil
}

// Status returns StatusReady on success, the classified code otherwise.
func (r ProbeResult) Status() Status {
	if r.Err == nil {
		return StatusReady
	}
	return r.Err.Code
}

// Prober checks whether an engine on a host is usable.
type Prober struct {
	// Classifier maps native failures. Nil uses DefaultClassifier.
	Classifier *Classifier

	// Now supplies the probe value's timestamp. Nil uses time.Now.
	Now func() time.Time
}

// Probe checks engine on host with the default prober.
func Probe(host *Host, engine Engine) ProbeResult {
	return Prober{}.Probe(host, engine)
}

// Probe checks engine on host.
//
// Order of checks:
//  1. null handle or degraded handle: StatusDisabled
//  2. missing handle: StatusNotAvailable
//  3. Len failure: classified
//  4. write then remove of ProbeKey; on failure a non-empty engine is
//     classified (most likely full) and an empty one is StatusDisabled
//     (zero quota, as in private browsing)
func (p Prober) Probe(host *Host, engine Engine) ProbeResult {
	b, registered := host.Lookup(engine)
	if registered && b == nil {
		return ProbeResult{Err: ErrDisabled}
	}
	if d, ok := b.(Degraded); ok {
		var degraded bool
		err := guard(func() error {
			degraded = d.Degraded()
			return nil
		})
		if err != nil {
			return ProbeResult{Err: ErrDisabled.WithCause(err)}
		}
		if degraded {
			return ProbeResult{Err: ErrDisabled}
		}
	}
	if b == nil {
		return ProbeResult{Err: ErrNotAvailable}
	}

	classifier := p.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	classifier = classifier.forBackend(b)

	var items int
	if err := guard(func() (err error) {
		items, err = b.Len()
		return err
	}); err != nil {
		return ProbeResult{Err: classifier.Classify(err)}
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	err := guard(func() error {
		value := ulid.MustNew(ulid.Timestamp(now()), rand.Reader).String()
		if err := b.SetItem(ProbeKey, value); err != nil {
			return err
		}
		return b.RemoveItem(ProbeKey)
	})
	if err != nil {
		if items > 0 {
			return ProbeResult{Err: classifier.Classify(err)}
		}
		return ProbeResult{Err: ErrDisabled.WithCause(err)}
	}

	return ProbeResult{}
}
