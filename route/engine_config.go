package route

// EngineConfig holds the thresholds used by validation, base selection,
// fusion and scoring. Distances are in meters, percentages in 0..100.
// A zero field means "use the default".
type EngineConfig struct {
	// Validation
	MinPoints            int     `yaml:"minPoints" json:"minPoints"`
	DistanceTolerancePct float64 `yaml:"distanceTolerancePct" json:"distanceTolerancePct"`
	CorridorSampleSize   int     `yaml:"corridorSampleSize" json:"corridorSampleSize"`
	CorridorMaxMean      float64 `yaml:"corridorMaxMean" json:"corridorMaxMean"`
	CorridorFarDistance  float64 `yaml:"corridorFarDistance" json:"corridorFarDistance"`
	CorridorMaxFarPct    float64 `yaml:"corridorMaxFarPct" json:"corridorMaxFarPct"`
	EndpointTolerance    float64 `yaml:"endpointTolerance" json:"endpointTolerance"`
	ShortCourseDistance  float64 `yaml:"shortCourseDistance" json:"shortCourseDistance"`
	LowResReferencePts   int     `yaml:"lowResReferencePoints" json:"lowResReferencePoints"`
	LowResReferenceRatio float64 `yaml:"lowResReferenceRatio" json:"lowResReferenceRatio"`

	// Base selection
	GuardrailPointRatio    float64 `yaml:"guardrailPointRatio" json:"guardrailPointRatio"`
	GuardrailCorridorRatio float64 `yaml:"guardrailCorridorRatio" json:"guardrailCorridorRatio"`
	EventEndpointGood      float64 `yaml:"eventEndpointGood" json:"eventEndpointGood"`
	EventEndpointPoor      float64 `yaml:"eventEndpointPoor" json:"eventEndpointPoor"`
	EventCorridorSlack     float64 `yaml:"eventCorridorSlack" json:"eventCorridorSlack"`
	PointsPerKm            float64 `yaml:"pointsPerKm" json:"pointsPerKm"`

	// Fusion
	BackupElevationRadius float64 `yaml:"backupElevationRadius" json:"backupElevationRadius"`

	// Scoring
	JumpThreshold       float64 `yaml:"jumpThreshold" json:"jumpThreshold"`
	ElevationSpike      float64 `yaml:"elevationSpike" json:"elevationSpike"`
	AgreementSampleSize int     `yaml:"agreementSampleSize" json:"agreementSampleSize"`
	AgreementTopN       int     `yaml:"agreementTopN" json:"agreementTopN"`
}

// DefaultEngineConfig returns the thresholds the scoring bands were tuned with.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinPoints:            50,
		DistanceTolerancePct: 20,
		CorridorSampleSize:   50,
		CorridorMaxMean:      50,
		CorridorFarDistance:  50,
		CorridorMaxFarPct:    30,
		EndpointTolerance:    500,
		ShortCourseDistance:  5000,
		LowResReferencePts:   50,
		LowResReferenceRatio: 0.7,

		GuardrailPointRatio:    0.5,
		GuardrailCorridorRatio: 0.7,
		EventEndpointGood:      25,
		EventEndpointPoor:      75,
		EventCorridorSlack:     1.5,
		PointsPerKm:            125,

		BackupElevationRadius: 50,

		JumpThreshold:       100,
		ElevationSpike:      10,
		AgreementSampleSize: 20,
		AgreementTopN:       3,
	}
}

// normalized fills zero fields from the defaults.
func (c EngineConfig) normalized() EngineConfig {
	d := DefaultEngineConfig()
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setFloat := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}

	setInt(&c.MinPoints, d.MinPoints)
	setFloat(&c.DistanceTolerancePct, d.DistanceTolerancePct)
	setInt(&c.CorridorSampleSize, d.CorridorSampleSize)
	setFloat(&c.CorridorMaxMean, d.CorridorMaxMean)
	setFloat(&c.CorridorFarDistance, d.CorridorFarDistance)
	setFloat(&c.CorridorMaxFarPct, d.CorridorMaxFarPct)
	setFloat(&c.EndpointTolerance, d.EndpointTolerance)
	setFloat(&c.ShortCourseDistance, d.ShortCourseDistance)
	setInt(&c.LowResReferencePts, d.LowResReferencePts)
	setFloat(&c.LowResReferenceRatio, d.LowResReferenceRatio)

	setFloat(&c.GuardrailPointRatio, d.GuardrailPointRatio)
	setFloat(&c.GuardrailCorridorRatio, d.GuardrailCorridorRatio)
	setFloat(&c.EventEndpointGood, d.EventEndpointGood)
	setFloat(&c.EventEndpointPoor, d.EventEndpointPoor)
	setFloat(&c.EventCorridorSlack, d.EventCorridorSlack)
	setFloat(&c.PointsPerKm, d.PointsPerKm)

	setFloat(&c.BackupElevationRadius, d.BackupElevationRadius)

	setFloat(&c.JumpThreshold, d.JumpThreshold)
	setFloat(&c.ElevationSpike, d.ElevationSpike)
	setInt(&c.AgreementSampleSize, d.AgreementSampleSize)
	setInt(&c.AgreementTopN, d.AgreementTopN)
	return c
}
