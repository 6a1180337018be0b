package common

import "time"

// Columns that identify a student but are never model inputs. Training and
// inference both read this set; do not redeclare it elsewhere.
var DroppedColumns = []string{"Student_ID", "Name"}

// LabelColumn holds the training target ("Yes"/"No").
const LabelColumn = "Placed"

// Canonical feature names of the placement model, in training order.
var DefaultFeatures = []string{
	"Maths",
	"Python",
	"SQL",
	"Attendance",
	"Mini_Projects",
	"Communication_Score",
	"Placement_Readiness_Score",
}

// Environment variable keys
const (
	EnvConfigFile        = "CONFIG_FILE"
	EnvEnvFile           = "ENV_FILE"
	EnvArtifactBackend   = "ARTIFACT_BACKEND"
	EnvArtifactDir       = "ARTIFACT_DIR"
	EnvDataPath          = "DATA_PATH"
	EnvServerPort        = "SERVER_PORT"
	EnvMetricsPort       = "METRICS_PORT"
	EnvRequestTimeout    = "REQUEST_TIMEOUT"
	EnvWarmup            = "WARMUP"
	EnvRecordPredictions = "RECORD_PREDICTIONS"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
)

// Artifact backends
const (
	BackendDir  = "dir"
	BackendBolt = "bolt"
)

// Configuration defaults
const (
	DefaultArtifactBackend = BackendDir
	DefaultArtifactDir     = "artifacts"
	DefaultServerPort      = 8000
	DefaultMetricsPort     = 8080
	DefaultRequestTimeout  = 5 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
)

// Validation constants
const (
	MinPort = 1024
	MaxPort = 65535
)
