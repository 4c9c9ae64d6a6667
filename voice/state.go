package voice

import "time"

// State 对话状态
type State string

const (
	StateInit         State = "init"
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateInferring    State = "inferring"
	StateSynthesizing State = "synthesizing"
	StatePlaying      State = "playing"
	StateInterrupted  State = "interrupted"
	StateError        State = "error"
)

// AllStates 全部状态，按生命周期排列
var AllStates = []State{
	StateInit, StateIdle, StateRecording, StateTranscribing, StateInferring,
	StateSynthesizing, StatePlaying, StateInterrupted, StateError,
}

// Busy 是否处于一个进行中的轮次
func (s State) Busy() bool {
	switch s {
	case StateRecording, StateTranscribing, StateInferring, StateSynthesizing, StatePlaying:
		return true
	}
	return false
}

// EventType 事件类型
type EventType string

const (
	EventMicPressed     EventType = "mic_pressed"
	EventMicReleased    EventType = "mic_released"
	EventVadSpeechStart EventType = "vad_speech_start"
	EventVadSpeechEnd   EventType = "vad_speech_end"
	EventSttDone        EventType = "stt_done"
	EventLlmDone        EventType = "llm_done"
	EventTtsDone        EventType = "tts_done"
	EventUserStop       EventType = "user_stop"
	EventSystemError    EventType = "system_error"
)

// AllEvents 全部事件类型
var AllEvents = []EventType{
	EventMicPressed, EventMicReleased, EventVadSpeechStart, EventVadSpeechEnd,
	EventSttDone, EventLlmDone, EventTtsDone, EventUserStop, EventSystemError,
}

// Event 驱动状态机的事件
type Event struct {
	Type    EventType
	Text    string
	Samples []float32
	Err     error
}

func MicPressed() Event     { return Event{Type: EventMicPressed} }
func MicReleased() Event    { return Event{Type: EventMicReleased} }
func VadSpeechStart() Event { return Event{Type: EventVadSpeechStart} }
func TtsDone() Event        { return Event{Type: EventTtsDone} }
func UserStop() Event       { return Event{Type: EventUserStop} }

// VadSpeechEnd 携带 VAD 收集到的完整语音段
func VadSpeechEnd(samples []float32) Event {
	return Event{Type: EventVadSpeechEnd, Samples: samples}
}

// SttDone 转写完成；失败时 text 为空
func SttDone(text string) Event { return Event{Type: EventSttDone, Text: text} }

// LlmDone 携带最终要朗读的应答文本
func LlmDone(text string) Event { return Event{Type: EventLlmDone, Text: text} }

// SystemError 外部报告的系统错误
func SystemError(err error) Event { return Event{Type: EventSystemError, Err: err} }

type edge struct {
	from  State
	event EventType
}

var transitions = map[edge]State{
	{StateIdle, EventMicPressed}:          StateRecording,
	{StateRecording, EventVadSpeechStart}: StateTranscribing,
	{StateRecording, EventMicReleased}:    StateIdle,
	{StateTranscribing, EventSttDone}:     StateInferring,
	{StateInferring, EventLlmDone}:        StateSynthesizing,
	{StateSynthesizing, EventTtsDone}:     StateIdle,
	{StatePlaying, EventTtsDone}:          StateIdle,
	{StateInterrupted, EventUserStop}:     StateIdle,
	{StateError, EventSystemError}:        StateIdle,
}

// Next 返回 (from, event) 的目标状态；表外组合返回 (from, false)
func Next(from State, event EventType) (State, bool) {
	to, ok := transitions[edge{from, event}]
	if !ok {
		return from, false
	}
	return to, true
}

// Transition 一次状态变化，推送给订阅者
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Event EventType `json:"event,omitempty"`
	Cause string    `json:"cause,omitempty"`
	At    time.Time `json:"at"`
}

// Snapshot 当前状态快照
type Snapshot struct {
	State  State     `json:"state"`
	Cause  string    `json:"cause,omitempty"`
	TurnID string    `json:"turn_id,omitempty"`
	Since  time.Time `json:"since"`
}
