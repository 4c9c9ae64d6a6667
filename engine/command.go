package engine

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
)

// PCMSource 从 16bit 小端单声道 PCM 流读取采样
type PCMSource struct {
	r   io.ReadCloser
	raw []byte
}

// NewPCMSource 包装一个 PCM 字节流
func NewPCMSource(r io.ReadCloser) *PCMSource {
	return &PCMSource{r: r}
}

func (s *PCMSource) ReadFrame(frame []float32) (int, error) {
	need := 2 * len(frame)
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	raw := s.raw[:need]
	n, err := io.ReadFull(s.r, raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	samples := PCM16ToFloat(raw[:n-n%2])
	copy(frame, samples)
	return len(samples), err
}

func (s *PCMSource) Close() error { return s.r.Close() }

// processPipe 外部进程的一端管道，关闭时结束进程
type processPipe struct {
	io.Reader
	io.Writer
	pipe   io.Closer
	cmd    *exec.Cmd
	once   sync.Once
	logger *zap.Logger
}

func (p *processPipe) Close() error {
	var err error
	p.once.Do(func() {
		err = p.pipe.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		if werr := p.cmd.Wait(); werr != nil {
			p.logger.Debug("audio process exited", zap.Strings("args", p.cmd.Args), zap.Error(werr))
		}
	})
	return err
}

// commandArgs 单个元素按 shell 规则拆分，方便从环境变量写整行命令
func commandArgs(args []string) ([]string, error) {
	if len(args) != 1 {
		return args, nil
	}
	return shellquote.Split(args[0])
}

// CommandSource 返回一个启动采集命令的 SourceOpener，命令需向 stdout 输出 16bit PCM
func CommandSource(args []string, logger *zap.Logger) SourceOpener {
	args, err := commandArgs(args)
	if err != nil {
		return func() (SampleSource, error) {
			return nil, fmt.Errorf("parse capture command: %w", err)
		}
	}
	if len(args) == 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func() (SampleSource, error) {
		cmd := exec.Command(args[0], args[1:]...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start capture %q: %w", args[0], err)
		}
		return NewPCMSource(&processPipe{Reader: stdout, pipe: stdout, cmd: cmd, logger: logger}), nil
	}
}

// CommandSink 返回一个启动播放命令的 SinkOpener，参数中的 {rate} 替换为采样率
func CommandSink(args []string, logger *zap.Logger) SinkOpener {
	args, err := commandArgs(args)
	if err != nil {
		return func(int) (io.WriteCloser, error) {
			return nil, fmt.Errorf("parse playback command: %w", err)
		}
	}
	if len(args) == 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(sampleRate int) (io.WriteCloser, error) {
		expanded := make([]string, len(args))
		for i, a := range args {
			expanded[i] = strings.ReplaceAll(a, "{rate}", strconv.Itoa(sampleRate))
		}
		cmd := exec.Command(expanded[0], expanded[1:]...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		cmd.Stdout = io.Discard
		if err := cmd.Start(); err != nil {
			_ = stdin.Close()
			return nil, fmt.Errorf("start playback %q: %w", expanded[0], err)
		}
		return &processPipe{Writer: stdin, pipe: stdin, cmd: cmd, logger: logger}, nil
	}
}
