// Package app assembles the chat use case from configuration. It is shared by
// the HTTP gateway and the Lambda entry point.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"huijin-agent/internal/config"
	"huijin-agent/internal/integrations/dashscope"
	"huijin-agent/internal/integrations/paramstore"
	"huijin-agent/internal/repository"
	"huijin-agent/internal/usecase"
)

type awsLoader func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error)

// NewChatService builds the chat use case. AWS clients are only created when
// the key lives in SSM or exchange recording is enabled.
func NewChatService(ctx context.Context, cfg config.Config) (*usecase.ChatService, error) {
	return newChatService(ctx, cfg, awsconfig.LoadDefaultConfig)
}

func newChatService(ctx context.Context, cfg config.Config, load awsLoader) (*usecase.ChatService, error) {
	var (
		awsCfg    aws.Config
		awsLoaded bool
	)
	needAWS := func() (aws.Config, error) {
		if awsLoaded {
			return awsCfg, nil
		}
		c, err := load(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg, awsLoaded = c, true
		return awsCfg, nil
	}

	clientOpts := []dashscope.Option{
		dashscope.WithHTTPClient(&http.Client{Timeout: cfg.DashScope.Timeout}),
	}
	if cfg.DashScope.APIKey != "" {
		clientOpts = append(clientOpts, dashscope.WithAPIKey(cfg.DashScope.APIKey))
	}
	if cfg.DashScope.APIKeyParam != "" {
		c, err := needAWS()
		if err != nil {
			return nil, err
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(c))
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, dashscope.WithParamStore(ssmClient, cfg.DashScope.APIKeyParam))
	}

	upstream, err := dashscope.NewClient(cfg.DashScope.CompletionURL(), clientOpts...)
	if err != nil {
		return nil, err
	}

	var serviceOpts []usecase.ChatOption
	if cfg.Exchange.Enabled() {
		c, err := needAWS()
		if err != nil {
			return nil, err
		}
		recorder, err := repository.New(awsdynamodb.NewFromConfig(c), cfg.Exchange.Table)
		if err != nil {
			return nil, err
		}
		serviceOpts = append(serviceOpts, usecase.WithRecorder(recorder))
		slog.InfoContext(ctx, "exchange recording enabled", "table", cfg.Exchange.Table)
	}

	return usecase.NewChatService(upstream, serviceOpts...)
}
