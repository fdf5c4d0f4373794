// Package domain holds the wire types and port contracts shared by the
// process sampler, service catalog resolver, and resource handler,
// grounded on appscale.hermes.resources.process.Process and
// appscale.hermes.constants from the AppScale Hermes agent.
package domain

// AppscaleTag is the constant first tag of every classified managed
// process' own_tags, matching APPSCALE_PROCESS_TAG in process.py.
const AppscaleTag = "appscale"

// SecretHeader is the name of the header carrying the cluster shared
// secret on peer-to-peer requests, matching constants.py's SECRET_HEADER.
const SecretHeader = "Appscale-Secret"

// DefaultPort is the port Hermes listens on when a peer location omits
// one, matching constants.py's HERMES_PORT.
const DefaultPort = 4378

// ReturnAs2JSONObjectsParam is the query parameter that switches the
// local list response from a JSON object to the raw two-array splice
// framing used between peers.
const ReturnAs2JSONObjectsParam = "return-as-2-json-objects"

// BodyConnector is the 8-byte delimiter separating the raw entities JSON
// array from the raw failures JSON array in the splice framing. It must
// never be re-encoded: peers of the same build rely on it bit-exactly.
var BodyConnector = []byte{0x0A, 0x0A, 0xFF, 0xFF, 0xFF, 0xFF, 0x0A, 0x0A}

// Tags is an ordered list of classification labels attached to a
// process. The first tag of a classified process is always AppscaleTag.
type Tags []string

// ProcessSample is one row per live process at one sampling instant,
// grounded on process.py's Process attrs class.
type ProcessSample struct {
	UTCTimestamp   float64  `json:"utc_timestamp"`
	Host           string   `json:"host"`
	SampleTimeDiff *float64 `json:"sample_time_diff,omitempty"`

	LongPID    string `json:"long_pid"`
	PID        int32  `json:"pid"`
	PPID       int32  `json:"ppid"`
	CreateTime int64  `json:"create_time"`
	Status     string `json:"status"`
	Username   string `json:"username"`
	Cwd        string `json:"cwd"`
	Name       string `json:"name"`
	Exe        string `json:"exe"`
	Cmdline    string `json:"cmdline"`

	OwnTags Tags `json:"own_tags"`
	AllTags Tags `json:"all_tags"`

	CPUUser         float64  `json:"cpu_user"`
	CPUSystem       float64  `json:"cpu_system"`
	CPUPercent      float64  `json:"cpu_percent"`
	CPUUser1hDiff   *float64 `json:"cpu_user_1h_diff,omitempty"`
	CPUSystem1hDiff *float64 `json:"cpu_system_1h_diff,omitempty"`

	MemoryResident uint64 `json:"memory_resident"`
	MemoryVirtual  uint64 `json:"memory_virtual"`
	MemoryShared   uint64 `json:"memory_shared"`

	DiskIOReadCount        *uint64  `json:"disk_io_read_count,omitempty"`
	DiskIOWriteCount       *uint64  `json:"disk_io_write_count,omitempty"`
	DiskIOReadBytes        *uint64  `json:"disk_io_read_bytes,omitempty"`
	DiskIOWriteBytes       *uint64  `json:"disk_io_write_bytes,omitempty"`
	DiskIOReadCount1hDiff  *float64 `json:"disk_io_read_count_1h_diff,omitempty"`
	DiskIOWriteCount1hDiff *float64 `json:"disk_io_write_count_1h_diff,omitempty"`
	DiskIOReadBytes1hDiff  *float64 `json:"disk_io_read_bytes_1h_diff,omitempty"`
	DiskIOWriteBytes1hDiff *float64 `json:"disk_io_write_bytes_1h_diff,omitempty"`

	ThreadsNum         int32 `json:"threads_num"`
	FileDescriptorsNum int32 `json:"file_descriptors_num"`

	CtxSwitchesVoluntary         int64    `json:"ctx_switches_voluntary"`
	CtxSwitchesInvoluntary       int64    `json:"ctx_switches_involuntary"`
	CtxSwitchesVoluntary1hDiff   *float64 `json:"ctx_switches_voluntary_1h_diff,omitempty"`
	CtxSwitchesInvoluntary1hDiff *float64 `json:"ctx_switches_involuntary_1h_diff,omitempty"`
}

// FailureEntry is a {host, message} record surfaced in an aggregated
// response, never a fatal error.
type FailureEntry struct {
	Host    string `json:"host"`
	Message string `json:"message"`
}
