package chrono

import (
	"time"
)

var saoPaulo *time.Location

func init() {
	var err error
	saoPaulo, err = time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		// containers without tzdata, the campus has not observed DST since 2019
		saoPaulo = time.FixedZone("America/Sao_Paulo", -3*60*60)
	}
}

// Campus returns the [*time.Location] the portals render dates in.
func Campus() *time.Location {
	return saoPaulo
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in the campus timezone.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(saoPaulo)
}

// FixedTime is a TimeAPI that always returns the same instant.
type FixedTime struct {
	T time.Time
}

func (f FixedTime) Now() time.Time {
	return f.T.In(saoPaulo)
}
