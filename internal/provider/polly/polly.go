// Package polly synthesises narration with Amazon Polly.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

var (
	ErrThrottled = errors.New("polly throttled")
	ErrRejected  = errors.New("polly rejected request")
	ErrNoAudio   = errors.New("polly returned no audio")
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Config struct {
	Region     string
	VoiceID    string
	Engine     string
	SampleRate string
	Timeout    time.Duration
}

// Synthesizer implements speech.Synthesizer. The AWS client is resolved
// lazily from the default credential chain on first use.
type Synthesizer struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

func New(cfg Config) *Synthesizer {
	return NewWithClient(cfg, nil)
}

func NewWithClient(cfg Config, client synthClient) *Synthesizer {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "ap-northeast-2"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Seoyeon"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if strings.TrimSpace(cfg.SampleRate) == "" {
		cfg.SampleRate = "24000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Synthesizer{client: client, cfg: cfg}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	client, err := s.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(s.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	out, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		SampleRate:   &s.cfg.SampleRate,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(s.cfg.VoiceID),
	})
	if err != nil {
		return nil, classify(err)
	}
	if out == nil || out.AudioStream == nil {
		return nil, ErrNoAudio
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("reading polly audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}
	return audio, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			return fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "InvalidSampleRateException":
			return fmt.Errorf("%w: %s: %s", ErrRejected, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
	}
	return fmt.Errorf("polly synthesize: %w", err)
}

func (s *Synthesizer) resolveClient(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = polly.NewFromConfig(awsCfg)
	return s.client, nil
}
