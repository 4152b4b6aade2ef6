// Package obslog builds a structured logrus entry carrying helper_role,
// query_id and step fields. pkg/context's Context carries no logger, and
// no package in this module calls obslog.
package obslog

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/luxfi/ipa/pkg/party"
)

// New builds the root logger for one helper's run of a query, tagged
// with its role and query id. Callers narrow it further per step via
// WithStep as execution descends the step tree.
func New(role party.Role, queryID string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l.WithFields(logrus.Fields{
		"helper_role": role.String(),
		"query_id":    queryID,
	})
}

// WithStep returns a child entry tagged with the current step path, for
// logging round transitions at Debug level.
func WithStep(entry *logrus.Entry, step string) *logrus.Entry {
	return entry.WithField("step", step)
}
