package gitodb

import (
	"github.com/sirupsen/logrus"
)

// defaultLogger is used by a Repository that wasn't given one explicitly via
// WithLogger. Field-heavy but quiet: the reader only logs conditions a
// caller can't otherwise observe from a return value, the way
// checker.go/converter.go log in the nydusify tooling.
var defaultLogger = logrus.StandardLogger()

func (r *Repository) logf() *logrus.Entry {
	return r.logger.WithField("repo", r.root)
}
