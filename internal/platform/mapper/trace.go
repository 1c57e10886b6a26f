package mapper

import "time"

// Trace is an optional, per-call audit record of every field's inputs,
// outputs and outcome. It is created when the caller enables tracing on the
// Context, owned by that context for the duration of the call, and read by
// the caller afterwards. A trace remains available on failure, with Success
// false and the error message recorded.
type Trace struct {
	TraceID      string       `json:"traceId"`
	MappingID    string       `json:"mappingId,omitempty"`
	Success      bool         `json:"success"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	StartTime    time.Time    `json:"startTime"`
	EndTime      time.Time    `json:"endTime"`
	Fields       []FieldTrace `json:"fields"`
}

// FieldTrace records one field rule's execution: what was read, what was
// produced, and how it ended. Fields whose condition short-circuits, and
// fields that fail, are recorded too.
type FieldTrace struct {
	FieldID         string      `json:"fieldId"`
	SourcePath      string      `json:"sourcePath,omitempty"`
	TargetPath      string      `json:"targetPath,omitempty"`
	SourceValue     interface{} `json:"sourceValue,omitempty"`
	ResultValue     interface{} `json:"resultValue,omitempty"`
	Expression      string      `json:"expression,omitempty"`
	Condition       string      `json:"condition,omitempty"`
	ConditionPassed bool        `json:"conditionPassed"`
	ErrorMessage    string      `json:"errorMessage,omitempty"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         time.Time   `json:"endTime"`
}

// NewTrace creates a trace with its start time set to now.
func NewTrace(traceID string) *Trace {
	return &Trace{TraceID: traceID, StartTime: time.Now(), Fields: []FieldTrace{}}
}

func (t *Trace) begin(mappingID string) {
	t.MappingID = mappingID
	t.StartTime = time.Now()
}

func (t *Trace) finishSuccess() {
	t.Success = true
	t.EndTime = time.Now()
}

func (t *Trace) finishFailure(err error) {
	t.Success = false
	t.ErrorMessage = err.Error()
	t.EndTime = time.Now()
}

func (t *Trace) addField(ft FieldTrace) {
	t.Fields = append(t.Fields, ft)
}

// FieldByID returns the first field trace recorded for the given field id.
func (t *Trace) FieldByID(fieldID string) (FieldTrace, bool) {
	for _, ft := range t.Fields {
		if ft.FieldID == fieldID {
			return ft, true
		}
	}
	return FieldTrace{}, false
}
