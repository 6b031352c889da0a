package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

const (
	pollyDefaultRegion = "us-east-1"
	pollyDefaultVoice  = "Joanna"
)

var pollyVoices = []string{"Joanna", "Matthew", "Ruth", "Zhiyu"}

// pollyClient is the subset of the Polly API used here.
type pollyClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyConfig holds the configuration for Amazon Polly. Credentials come from
// the AWS default chain.
type PollyConfig struct {
	Region string // default us-east-1
	Voice  string // default Joanna
	Engine string // "neural" (default) or "standard"
}

// PollyProvider implements TTSProvider with Amazon Polly.
type PollyProvider struct {
	mu     sync.Mutex
	client pollyClient
	cfg    PollyConfig
}

// NewPollyProvider creates a Polly provider. The AWS client is resolved on
// first use.
func NewPollyProvider(cfg PollyConfig) *PollyProvider {
	return newPollyProviderWithClient(cfg, nil)
}

func newPollyProviderWithClient(cfg PollyConfig, client pollyClient) *PollyProvider {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = pollyDefaultRegion
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = pollyDefaultVoice
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	return &PollyProvider{client: client, cfg: cfg}
}

// Name returns the provider name
func (p *PollyProvider) Name() string {
	return "polly"
}

// Synthesize renders text to MP3.
func (p *PollyProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	client, err := p.resolveClient(ctx)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: err}
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(p.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	voice := req.Voice
	if voice == "" {
		voice = p.cfg.Voice
	}

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         aws.String(req.Text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: describePollyError(err)}
	}
	if output == nil || output.AudioStream == nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: errors.New("empty audio stream")}
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: fmt.Errorf("failed to read audio stream: %w", err)}
	}

	return &SynthesizeResponse{
		AudioData: audio,
		AudioFormat: AudioFormat{
			SampleRate: 22050,
			Channels:   1,
			MediaType:  "audio/mpeg",
			Encoding:   "mp3",
		},
	}, nil
}

func describePollyError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			return fmt.Errorf("polly throttled: %w", err)
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException":
			return fmt.Errorf("polly rejected input: %w", err)
		}
	}
	return err
}

func (p *PollyProvider) resolveClient(ctx context.Context) (pollyClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}

// GetSupportedVoices returns a list of known voice IDs
func (p *PollyProvider) GetSupportedVoices() []string {
	return pollyVoices
}

// GetDefaultVoice returns the configured voice
func (p *PollyProvider) GetDefaultVoice() string {
	return p.cfg.Voice
}

// ValidateConfig validates the provider configuration
func (p *PollyProvider) ValidateConfig() error {
	if p.cfg.Region == "" {
		return fmt.Errorf("AWS region is not set")
	}
	return nil
}

var _ TTSProvider = (*PollyProvider)(nil)
