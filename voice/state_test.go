package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNext_Table(t *testing.T) {
	tests := []struct {
		from  State
		event EventType
		want  State
	}{
		{StateIdle, EventMicPressed, StateRecording},
		{StateRecording, EventVadSpeechStart, StateTranscribing},
		{StateRecording, EventMicReleased, StateIdle},
		{StateTranscribing, EventSttDone, StateInferring},
		{StateInferring, EventLlmDone, StateSynthesizing},
		{StateSynthesizing, EventTtsDone, StateIdle},
		{StatePlaying, EventTtsDone, StateIdle},
		{StateInterrupted, EventUserStop, StateIdle},
		{StateError, EventSystemError, StateIdle},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, ok := Next(tt.from, tt.event)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_InitIgnoresEverything(t *testing.T) {
	for _, ev := range AllEvents {
		got, ok := Next(StateInit, ev)
		assert.False(t, ok, ev)
		assert.Equal(t, StateInit, got)
	}
}

func TestNext_SpeechEndNeverTransitions(t *testing.T) {
	for _, s := range AllStates {
		got, ok := Next(s, EventVadSpeechEnd)
		assert.False(t, ok)
		assert.Equal(t, s, got)
	}
}

// 表外的 (状态, 事件) 组合保持状态不变
func TestNext_Totality(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.SampledFrom(AllStates).Draw(rt, "state")
		ev := rapid.SampledFrom(AllEvents).Draw(rt, "event")

		got, ok := Next(s, ev)
		_, listed := transitions[edge{s, ev}]
		if ok != listed {
			rt.Fatalf("Next(%s, %s) ok=%v, listed=%v", s, ev, ok, listed)
		}
		if !ok && got != s {
			rt.Fatalf("Next(%s, %s) moved to %s", s, ev, got)
		}
	})
}

// 任意事件序列下状态始终在已知集合内，且从 Idle 出发只经由 MicPressed 离开
func TestNext_RandomWalk(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := StateIdle
		events := rapid.SliceOfN(rapid.SampledFrom(AllEvents), 1, 50).Draw(rt, "events")
		for _, ev := range events {
			next, ok := Next(s, ev)
			if s == StateIdle && ok && ev != EventMicPressed {
				rt.Fatalf("idle left via %s", ev)
			}
			if next == StateInit || next == StateError || next == StatePlaying || next == StateInterrupted {
				rt.Fatalf("event table reached %s, which only commands may enter", next)
			}
			s = next
		}
	})
}

func TestState_Busy(t *testing.T) {
	busy := map[State]bool{
		StateRecording: true, StateTranscribing: true, StateInferring: true,
		StateSynthesizing: true, StatePlaying: true,
	}
	for _, s := range AllStates {
		assert.Equal(t, busy[s], s.Busy(), s)
	}
}
