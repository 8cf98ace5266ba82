package ttlstash

import (
	"errors"
	"io/fs"
	"runtime"
	"slices"
	"strings"
	"syscall"
)

// CodedError is implemented by backend errors that carry a numeric code in
// the style of DOMException.code (22 for QuotaExceededError, 18 for
// SecurityError, ...).
type CodedError interface {
	error
	Code() int
}

// NumberedError is implemented by backend errors that carry an HRESULT-style
// number.
type NumberedError interface {
	error
	Number() int64
}

// Rule maps one family of native backend failures to a Status.
type Rule struct {
	// Name identifies the rule in logs and tests.
	Name string

	// Match reports whether the native error belongs to this family.
	Match func(error) bool

	// Code is the status assigned on match.
	Code Status

	// Message replaces the native message. Empty keeps err.Error().
	Message string
}

// RuleProvider is implemented by backends that know their own failure
// signatures. Their rules are consulted before the default table.
type RuleProvider interface {
	ErrorRules() []Rule
}

// Classifier maps native errors to *Error using an ordered rule table.
// The first matching rule wins; unmatched errors become StatusException with
// the native message preserved.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over the given rules.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: slices.Clone(rules)}
}

// DefaultClassifier returns a classifier over DefaultRules.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules())
}

// With returns a new classifier whose table is rules followed by c's table.
func (c *Classifier) With(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		return c
	}
	merged := make([]Rule, 0, len(rules)+len(c.rules))
	merged = append(merged, rules...)
	merged = append(merged, c.rules...)
	return &Classifier{rules: merged}
}

// Rules returns a copy of the rule table.
func (c *Classifier) Rules() []Rule {
	return slices.Clone(c.rules)
}

// Classify maps err to a classified error. Errors that are already *Error
// pass through unchanged. Classify(nil) returns nil.
func (c *Classifier) Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return se
	}

	for _, r := range c.rules {
		if r.Match == nil || !r.Match(err) {
			continue
		}
		msg := r.Message
		if msg == "" {
			msg = err.Error()
		}
		return &Error{Code: r.Code, Message: msg, Cause: err}
	}

	return &Error{Code: StatusException, Message: err.Error(), Cause: err}
}

// forBackend returns c extended with the backend's own rules, if any.
func (c *Classifier) forBackend(b Backend) *Classifier {
	if rp, ok := b.(RuleProvider); ok {
		return c.With(rp.ErrorRules()...)
	}
	return c
}

// Known cross-platform failure signatures.
var (
	// QuotaCodes are DOMException codes for exhausted storage
	// (22: QUOTA_EXCEEDED_ERR, 1014: NS_ERROR_DOM_QUOTA_REACHED).
	QuotaCodes = []int{22, 1014}

	// QuotaNumbers are HRESULTs for exhausted storage
	// (0x8007000E: not enough storage, 0x800A0007: out of memory).
	QuotaNumbers = []int64{-2147024882, -2146828281}

	// SecurityCodes are DOMException codes for denied access
	// (18: SECURITY_ERR, 1000: storage disabled by policy).
	SecurityCodes = []int{18, 1000}
)

// DefaultRules returns a fresh copy of the default rule table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "quota-code",
			Match:   MatchCode(QuotaCodes...),
			Code:    StatusQuotaExceeded,
			Message: ErrQuotaExceeded.Message,
		},
		{
			Name:    "quota-number",
			Match:   MatchNumber(QuotaNumbers...),
			Code:    StatusQuotaExceeded,
			Message: ErrQuotaExceeded.Message,
		},
		{
			Name:    "quota-errno",
			Match:   MatchIs(syscall.ENOSPC, syscall.EDQUOT),
			Code:    StatusQuotaExceeded,
			Message: ErrQuotaExceeded.Message,
		},
		{
			Name:    "security-code",
			Match:   MatchCode(SecurityCodes...),
			Code:    StatusDisabled,
			Message: ErrDisabled.Message,
		},
		{
			Name:    "security-fs",
			Match:   MatchIs(fs.ErrPermission, syscall.EROFS),
			Code:    StatusDisabled,
			Message: ErrDisabled.Message,
		},
		{
			Name:    "vanished",
			Match:   MatchIs(ErrBackendClosed, fs.ErrClosed),
			Code:    StatusDisabled,
			Message: ErrDisabled.Message,
		},
		{
			Name:    "nil-handle",
			Match:   matchNilDereference,
			Code:    StatusDisabled,
			Message: ErrDisabled.Message,
		},
	}
}

// MatchCode matches errors whose chain holds a CodedError with one of codes.
func MatchCode(codes ...int) func(error) bool {
	return func(err error) bool {
		var ce CodedError
		if !errors.As(err, &ce) {
			return false
		}
		return slices.Contains(codes, ce.Code())
	}
}

// MatchNumber matches errors whose chain holds a NumberedError with one of
// numbers.
func MatchNumber(numbers ...int64) func(error) bool {
	return func(err error) bool {
		var ne NumberedError
		if !errors.As(err, &ne) {
			return false
		}
		return slices.Contains(numbers, ne.Number())
	}
}

// MatchIs matches errors for which errors.Is holds against any target.
func MatchIs(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

// matchNilDereference matches recovered runtime panics caused by a backend
// handle that went nil mid-call.
func matchNilDereference(err error) bool {
	var re runtime.Error
	if !errors.As(err, &re) {
		return false
	}
	return strings.Contains(re.Error(), "nil pointer dereference")
}

// MatchPrefix matches errors whose message starts with any prefix.
func MatchPrefix(prefixes ...string) func(error) bool {
	return func(err error) bool {
		msg := err.Error()
		for _, p := range prefixes {
			if strings.HasPrefix(msg, p) {
				return true
			}
		}
		return false
	}
}
