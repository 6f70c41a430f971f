package types

type Ecosystem string

const (
	EcosystemNpm   Ecosystem = "npm"
	EcosystemCargo Ecosystem = "cargo"
	EcosystemPypi  Ecosystem = "pypi"
)

// Ecosystems lists the supported registries in stable order.
func Ecosystems() []Ecosystem {
	return []Ecosystem{EcosystemNpm, EcosystemCargo, EcosystemPypi}
}

func (e Ecosystem) Valid() bool {
	switch e {
	case EcosystemNpm, EcosystemCargo, EcosystemPypi:
		return true
	default:
		return false
	}
}

// Outcome is the terminal state a package reaches within a single run.
type Outcome string

const (
	OutcomePublished        Outcome = "published"
	OutcomeSkippedPrivate   Outcome = "skipped-private"
	OutcomeSkippedPublished Outcome = "skipped-already-published"
	OutcomeFailedBuild      Outcome = "failed-build"
	OutcomeFailedUpload     Outcome = "failed-upload"
	OutcomeFailedRateLimit  Outcome = "failed-rate-limited"
)

func (o Outcome) Failed() bool {
	switch o {
	case OutcomeFailedBuild, OutcomeFailedUpload, OutcomeFailedRateLimit:
		return true
	default:
		return false
	}
}

func (o Outcome) Skipped() bool {
	return o == OutcomeSkippedPrivate || o == OutcomeSkippedPublished
}
