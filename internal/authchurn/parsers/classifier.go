package parsers

import "strings"

const loginSuffix = "/login"

// DefaultLoginKeywords are the path fragments that identify a Kubernetes
// style auth mount.
var DefaultLoginKeywords = []string{"kubernetes", "openshift"}

// SuccessPolicy controls the edge cases of success classification.
type SuccessPolicy struct {
	// MissingStatusIsSuccess treats a response with no status as a success.
	// Vault audit devices usually omit the status on successful logins.
	MissingStatusIsSuccess bool
}

// DefaultSuccessPolicy matches Vault's audit output.
func DefaultSuccessPolicy() SuccessPolicy {
	return SuccessPolicy{MissingStatusIsSuccess: true}
}

// Classifier decides whether a record is a Kubernetes login and whether it
// succeeded. Keyword and mount type matching is case sensitive.
type Classifier struct {
	keywords   []string
	mountTypes map[string]struct{}
	policy     SuccessPolicy
}

// NewClassifier builds a classifier. A nil keyword or mount type list falls
// back to DefaultLoginKeywords; an empty non-nil list matches nothing, so
// login detection can rely on mount types or path keywords alone.
func NewClassifier(keywords, mountTypes []string, policy SuccessPolicy) *Classifier {
	if keywords == nil {
		keywords = DefaultLoginKeywords
	}
	if mountTypes == nil {
		mountTypes = DefaultLoginKeywords
	}
	c := &Classifier{
		keywords:   append([]string(nil), keywords...),
		mountTypes: make(map[string]struct{}, len(mountTypes)),
		policy:     policy,
	}
	for _, t := range mountTypes {
		c.mountTypes[t] = struct{}{}
	}
	return c
}

var defaultClassifier = NewClassifier(nil, nil, DefaultSuccessPolicy())

// IsLoginOperation uses the default keywords and mount types.
func IsLoginOperation(path, mountType string) bool {
	return defaultClassifier.IsLoginOperation(path, mountType)
}

// IsSuccessfulResponse classifies rec under policy.
func IsSuccessfulResponse(rec *Record, policy SuccessPolicy) bool {
	return isSuccess(rec, policy)
}

// NormalizePath strips trailing slashes.
func NormalizePath(p string) string {
	return strings.TrimRight(p, "/")
}

// MountBase returns the path with the trailing /login segment removed.
func MountBase(path string) string {
	p := NormalizePath(path)
	if i := strings.LastIndex(p, loginSuffix); i >= 0 {
		return p[:i]
	}
	return p
}

// IsLoginOperation reports whether path is a login endpoint on a Kubernetes
// style mount.
func (c *Classifier) IsLoginOperation(path, mountType string) bool {
	p := NormalizePath(path)
	if !strings.HasSuffix(p, loginSuffix) {
		return false
	}
	if _, ok := c.mountTypes[mountType]; ok && mountType != "" {
		return true
	}
	for _, kw := range c.keywords {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}

// IsSuccessfulResponse reports whether rec is a response without error and
// with status 200, or no status at all when the policy allows it.
func (c *Classifier) IsSuccessfulResponse(rec *Record) bool {
	return isSuccess(rec, c.policy)
}

func isSuccess(rec *Record, policy SuccessPolicy) bool {
	if rec == nil || rec.Type != TypeResponse {
		return false
	}
	if rec.ErrorPresent || rec.StatusInvalid {
		return false
	}
	if rec.Status == nil {
		return policy.MissingStatusIsSuccess
	}
	return *rec.Status == 200
}
