package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/syncai-intake/internal/catalog"
	appconfig "github.com/wolfman30/syncai-intake/internal/config"
	"github.com/wolfman30/syncai-intake/internal/conversation"
	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

const memoryQueueBuffer = 256

// BuildLLMClient wires Gemini as the primary model and Bedrock as the
// fallback. Either may be absent; with neither configured it returns nil and
// the router runs on keywords alone. The returned func releases the clients.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	closer := func() {}
	var primary, fallback conversation.LLMClient

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		primary = gemini
		closer = func() { _ = gemini.Close() }
		logger.Info("gemini intent oracle enabled", "model", cfg.GeminiModel)
	}

	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		var resolved aws.Config
		if awsCfg != nil {
			resolved = *awsCfg
		} else {
			loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
			if err != nil {
				closer()
				return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
			}
			resolved = loaded
		}
		fallback = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(resolved), cfg.BedrockModelID)
		logger.Info("bedrock language model enabled", "model", cfg.BedrockModelID)
	}

	switch {
	case primary != nil && fallback != nil:
		return conversation.NewFailoverLLMClient(logger, cfg.LLMTimeout,
			conversation.LLMProvider{Name: "gemini", Client: primary},
			conversation.LLMProvider{Name: "bedrock", Client: fallback},
		), closer, nil
	case primary != nil:
		return primary, closer, nil
	case fallback != nil:
		return fallback, closer, nil
	}
	logger.Warn("no language model configured; intent detection uses booking keywords only")
	return nil, closer, nil
}

// BuildRouter assembles the conversation router. Without an LLM the keyword
// classifier decides intent and there is no free-form responder.
func BuildRouter(store conversation.BookingStore, llm conversation.LLMClient, products *catalog.Catalog, m *metrics.ConversationMetrics, logger *logging.Logger) *conversation.Router {
	if logger == nil {
		logger = logging.Default()
	}
	keywords := conversation.NewKeywordClassifier()
	opts := []conversation.RouterOption{conversation.WithRouterMetrics(m)}
	if products != nil {
		opts = append(opts, conversation.WithProductLookup(products))
	}

	var classifier conversation.IntentClassifier = keywords
	if llm != nil {
		oracle := conversation.NewOracleClassifier(llm)
		classifier = conversation.NewHybridClassifier(oracle, keywords, m, logger)
		opts = append(opts,
			conversation.WithTopicClassifier(oracle),
			conversation.WithResponder(conversation.NewLLMResponder(llm)),
		)
	}
	return conversation.NewRouter(store, classifier, logger, opts...)
}

// JobStore records async job state for the publisher, worker and status endpoint.
type JobStore interface {
	conversation.JobRecorder
	conversation.JobUpdater
}

// BuildJobStore returns the DynamoDB job store when a table is configured,
// otherwise an in-memory one that only the local process can see.
func BuildJobStore(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) JobStore {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || awsCfg == nil || strings.TrimSpace(cfg.ConversationJobsTable) == "" {
		logger.Info("conversation jobs tracked in memory")
		return conversation.NewMemoryJobStore()
	}
	logger.Info("conversation jobs tracked in dynamodb", "table", cfg.ConversationJobsTable)
	return conversation.NewJobStore(dynamodb.NewFromConfig(*awsCfg), cfg.ConversationJobsTable, logger)
}

// Pipeline is the queue-backed half of the service: the publisher feeding the
// queue and the worker draining it.
type Pipeline struct {
	Publisher *conversation.Publisher
	Worker    *conversation.Worker
	Queue     string
}

// PipelineDeps collects what the worker needs besides the queue itself.
type PipelineDeps struct {
	Router    conversation.MessageRouter
	Jobs      JobStore
	Messenger conversation.ReplyMessenger
	Processed conversation.ProcessedStore
	Metrics   *metrics.ConversationMetrics
}

// BuildPipeline picks SQS when a queue URL is configured and USE_MEMORY_QUEUE
// is off; otherwise publisher and worker share an in-process queue.
func BuildPipeline(cfg *appconfig.Config, awsCfg *aws.Config, deps PipelineDeps, logger *logging.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Router == nil || deps.Jobs == nil || deps.Messenger == nil {
		return nil, fmt.Errorf("bootstrap: router, job store and messenger are required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	workerOpts := []conversation.WorkerOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithWorkerMetrics(deps.Metrics),
	}
	if deps.Processed != nil {
		workerOpts = append(workerOpts, conversation.WithProcessedStore(deps.Processed))
	}

	if cfg.UseMemoryQueue || strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		if !cfg.UseMemoryQueue {
			logger.Warn("CONVERSATION_QUEUE_URL not set; falling back to in-memory queue")
		}
		queue := conversation.NewMemoryQueue(memoryQueueBuffer)
		return &Pipeline{
			Publisher: conversation.NewPublisher(queue, deps.Jobs, logger),
			Worker:    conversation.NewWorker(deps.Router, queue, deps.Jobs, deps.Messenger, logger, workerOpts...),
			Queue:     "memory",
		}, nil
	}

	if awsCfg == nil {
		return nil, fmt.Errorf("bootstrap: aws config required for sqs queue")
	}
	queue := conversation.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.ConversationQueueURL)
	return &Pipeline{
		Publisher: conversation.NewPublisher(queue, deps.Jobs, logger),
		Worker:    conversation.NewWorker(deps.Router, queue, deps.Jobs, deps.Messenger, logger, workerOpts...),
		Queue:     "sqs",
	}, nil
}
