package entrypoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/dispatch"
	"github.com/mrlokans/booktracker/internal/metadata"
)

// RunWorker consumes fetch requests from Kafka until ctx is cancelled.
func RunWorker(ctx context.Context, cfg *config.Config, version string, log *zap.Logger) error {
	if cfg.Dispatch.Mode != config.DispatchModeKafka {
		return fmt.Errorf("worker requires DISPATCH_MODE=kafka, got %q", cfg.Dispatch.Mode)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("worker requires KAFKA_BROKERS")
	}

	log = log.Named("worker")
	log.Info("starting fetch worker",
		zap.String("version", version),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.ConsumerGroup))

	shutdownTracing := setupTracing(ctx, cfg, version, log)
	defer shutdownTracing()

	st, _, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("error closing store", zap.Error(err))
		}
	}()

	group, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, dispatch.NewConsumerConfig())
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	fetcher := metadata.NewFetcher(st, newCatalog(cfg, log), log)
	handler := dispatch.NewConsumerHandler(fetcher, cfg.Dispatch.Timeout, log)

	return consumeUntilDone(ctx, group, cfg.Kafka.Topic, handler, log)
}

func consumeUntilDone(ctx context.Context, group sarama.ConsumerGroup, topic string, handler sarama.ConsumerGroupHandler, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatch.Consume(gctx, group, topic, handler, log)
	})

	g.Go(func() error {
		for {
			select {
			case err, ok := <-group.Errors():
				if !ok {
					return nil
				}
				log.Error("consumer group error", zap.Error(err))
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("stopping fetch worker")
		return group.Close()
	})

	return g.Wait()
}
