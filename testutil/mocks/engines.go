// Package mocks 提供语音能力的测试替身。
//
// 支持固定响应、延迟、错误注入与调用记录。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// --- MockTranscriber ---

// MockTranscriber 是 voice.Transcriber 的模拟实现
type MockTranscriber struct {
	mu          sync.Mutex
	text        string
	err         error
	warmErr     error
	unavailable bool
	delay       time.Duration
	calls       [][]float32
	panicMsg    string
}

// NewMockTranscriber 创建返回固定文本的转写器
func NewMockTranscriber(text string) *MockTranscriber {
	return &MockTranscriber{text: text}
}

// WithError 设置转写错误
func (m *MockTranscriber) WithError(err error) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithWarmupError 设置预热错误
func (m *MockTranscriber) WithWarmupError(err error) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmErr = err
	return m
}

// WithDelay 设置转写延迟
func (m *MockTranscriber) WithDelay(d time.Duration) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Unavailable 标记为不可用
func (m *MockTranscriber) Unavailable() *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = true
	return m
}

// WithPanic 转写时 panic
func (m *MockTranscriber) WithPanic(msg string) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

func (m *MockTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, samples)
	text, err, delay, panicMsg := m.text, m.err, m.delay, m.panicMsg
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if err := sleepCtx(ctx, delay); err != nil {
		return "", err
	}
	return text, err
}

func (m *MockTranscriber) Warmup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warmErr
}

func (m *MockTranscriber) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unavailable
}

// Calls 返回每次调用收到的采样
func (m *MockTranscriber) Calls() [][]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float32, len(m.calls))
	copy(out, m.calls)
	return out
}

// --- MockLanguageModel ---

// MockLanguageModel 是 voice.LanguageModel 的模拟实现
type MockLanguageModel struct {
	mu       sync.Mutex
	response string
	fn       func(prompt string) (string, error)
	err      error
	warmErr  error
	delay    time.Duration
	prompts  []string
	panicMsg string
}

// NewMockLanguageModel 创建返回固定补全的模型
func NewMockLanguageModel(response string) *MockLanguageModel {
	return &MockLanguageModel{response: response}
}

// WithFunc 按提示词动态生成补全
func (m *MockLanguageModel) WithFunc(fn func(prompt string) (string, error)) *MockLanguageModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// WithError 设置推理错误
func (m *MockLanguageModel) WithError(err error) *MockLanguageModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithWarmupError 设置预热错误
func (m *MockLanguageModel) WithWarmupError(err error) *MockLanguageModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmErr = err
	return m
}

// WithDelay 设置推理延迟
func (m *MockLanguageModel) WithDelay(d time.Duration) *MockLanguageModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithPanic 推理时 panic
func (m *MockLanguageModel) WithPanic(msg string) *MockLanguageModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

func (m *MockLanguageModel) Infer(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	response, fn, err, delay, panicMsg := m.response, m.fn, m.err, m.delay, m.panicMsg
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if err := sleepCtx(ctx, delay); err != nil {
		return "", err
	}
	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(prompt)
	}
	return response, nil
}

func (m *MockLanguageModel) Warmup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warmErr
}

// Prompts 返回收到的提示词
func (m *MockLanguageModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// --- MockSynthesizer ---

// MockSynthesizer 是 voice.Synthesizer 的模拟实现，每句返回固定长度的音频
type MockSynthesizer struct {
	mu         sync.Mutex
	sampleRate int
	samples    int
	delayFn    func(text string) time.Duration
	failOn     map[string]error
	warmErr    error
	calls      []string
	gate       chan struct{}
}

// NewMockSynthesizer 创建合成器；默认 16kHz、每句 16 个采样（1ms）
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{sampleRate: 16000, samples: 16, failOn: make(map[string]error)}
}

// WithSamples 每句音频的采样数
func (m *MockSynthesizer) WithSamples(n int) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = n
	return m
}

// WithSampleRate 输出采样率
func (m *MockSynthesizer) WithSampleRate(rate int) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampleRate = rate
	return m
}

// WithDelayFunc 按句子设置合成耗时
func (m *MockSynthesizer) WithDelayFunc(fn func(text string) time.Duration) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delayFn = fn
	return m
}

// FailOn 合成指定句子时返回错误
func (m *MockSynthesizer) FailOn(text string, err error) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[text] = err
	return m
}

// WithWarmupError 设置预热错误
func (m *MockSynthesizer) WithWarmupError(err error) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmErr = err
	return m
}

// Gated 每次合成前等待 Release 放行
func (m *MockSynthesizer) Gated() *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{}, 64)
	return m
}

// Release 放行 n 次合成
func (m *MockSynthesizer) Release(n int) {
	for i := 0; i < n; i++ {
		m.gate <- struct{}{}
	}
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, speakerID int, speed float64) (voice.Audio, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	rate, n, delayFn, gate := m.sampleRate, m.samples, m.delayFn, m.gate
	err := m.failOn[text]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return voice.Audio{}, ctx.Err()
		}
	}
	if delayFn != nil {
		if err := sleepCtx(ctx, delayFn(text)); err != nil {
			return voice.Audio{}, err
		}
	}
	if err != nil {
		return voice.Audio{}, err
	}
	return voice.Audio{Samples: make([]float32, n), SampleRate: rate}, nil
}

func (m *MockSynthesizer) Warmup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warmErr
}

func (m *MockSynthesizer) SampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

// Calls 返回合成过的句子
func (m *MockSynthesizer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// --- MockGate ---

// MockGate 是 voice.VoiceActivityDetector 的模拟实现，由测试手动触发语音事件
type MockGate struct {
	mu       sync.Mutex
	handler  voice.SpeechHandler
	buffered []float32
	starts   int
	stops    int
	startErr error
}

// NewMockGate 创建 VAD 替身
func NewMockGate() *MockGate {
	return &MockGate{}
}

// WithStartError 设置启动错误
func (g *MockGate) WithStartError(err error) *MockGate {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startErr = err
	return g
}

func (g *MockGate) Start(h voice.SpeechHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return g.startErr
	}
	g.starts++
	g.handler = h
	g.buffered = nil
	return nil
}

// Stop 若已检测到语音，把缓冲的采样强制交给 OnSpeechEnd
func (g *MockGate) Stop() {
	g.mu.Lock()
	h, buf := g.handler, g.buffered
	g.stops++
	g.handler, g.buffered = nil, nil
	g.mu.Unlock()

	if h != nil && len(buf) > 0 {
		h.OnSpeechEnd(buf)
	}
}

// SpeechStart 模拟检测到语音，之后的采样进入缓冲
func (g *MockGate) SpeechStart(samples []float32) bool {
	g.mu.Lock()
	h := g.handler
	g.buffered = append(g.buffered, samples...)
	g.mu.Unlock()

	if h == nil {
		return false
	}
	h.OnSpeechStart()
	return true
}

// SpeechEnd 模拟语音结束并自行停止
func (g *MockGate) SpeechEnd() bool {
	g.mu.Lock()
	h, buf := g.handler, g.buffered
	g.handler, g.buffered = nil, nil
	g.mu.Unlock()

	if h == nil {
		return false
	}
	h.OnSpeechEnd(buf)
	return true
}

// Running 是否已启动且未停止
func (g *MockGate) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handler != nil
}

// Starts 启动次数
func (g *MockGate) Starts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.starts
}

// Stops 停止次数
func (g *MockGate) Stops() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stops
}

// --- MockOutput ---

// ErrOutputReleased 在已释放的输出上播放
var ErrOutputReleased = errors.New("mock output released")

// MockOutput 是 voice.AudioOutput 的模拟实现
type MockOutput struct {
	mu        sync.Mutex
	valid     bool
	rate      int
	played    []voice.Audio
	reinits   int
	stops     int
	releases  int
	playErr   error
	reinitErr error
	onReinit  func()
}

// NewMockOutput 创建未初始化的输出
func NewMockOutput() *MockOutput {
	return &MockOutput{}
}

// WithPlayError 设置播放错误
func (o *MockOutput) WithPlayError(err error) *MockOutput {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playErr = err
	return o
}

// WithReinitError 设置初始化错误
func (o *MockOutput) WithReinitError(err error) *MockOutput {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reinitErr = err
	return o
}

// OnReinit 在 Reinit 完成后、返回前回调，用于模拟与停止交错
func (o *MockOutput) OnReinit(fn func()) *MockOutput {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onReinit = fn
	return o
}

// Invalidate 模拟设备失效
func (o *MockOutput) Invalidate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.valid = false
}

func (o *MockOutput) Valid() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.valid
}

func (o *MockOutput) Reinit(sampleRate int) error {
	o.mu.Lock()
	o.reinits++
	if o.reinitErr != nil {
		err := o.reinitErr
		o.mu.Unlock()
		return err
	}
	o.valid = true
	o.rate = sampleRate
	hook := o.onReinit
	o.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (o *MockOutput) Play(ctx context.Context, a voice.Audio) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playErr != nil {
		return o.playErr
	}
	if !o.valid {
		return ErrOutputReleased
	}
	o.played = append(o.played, a)
	return nil
}

func (o *MockOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stops++
}

func (o *MockOutput) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.releases++
	o.valid = false
	return nil
}

// Played 已播放的音频段
func (o *MockOutput) Played() []voice.Audio {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]voice.Audio, len(o.played))
	copy(out, o.played)
	return out
}

// Reinits 初始化次数
func (o *MockOutput) Reinits() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reinits
}

// Releases 释放次数
func (o *MockOutput) Releases() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.releases
}

// SampleRate 最近一次初始化的采样率
func (o *MockOutput) SampleRate() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
