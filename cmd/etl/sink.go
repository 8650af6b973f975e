package main

import (
	"context"
	"fmt"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/epi-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/epi-data-etl/internal/adapter/memory"
	"github.com/couchcryptid/epi-data-etl/internal/adapter/rabbitmq"
	"github.com/couchcryptid/epi-data-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/epi-data-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/epi-data-etl/internal/config"
	"github.com/couchcryptid/epi-data-etl/internal/pipeline"
)

// closableSink is a pipeline sink that holds a connection or file.
type closableSink interface {
	pipeline.Sink
	Close() error
}

// nopCloser adapts sinks without resources to closableSink.
type nopCloser struct {
	pipeline.Sink
}

func (nopCloser) Close() error { return nil }

// openSink builds the sink selected by SINK.
func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (closableSink, error) {
	switch cfg.Sink {
	case config.SinkMemory:
		return nopCloser{memory.NewSink()}, nil
	case config.SinkSQLite:
		return sqlstore.Open(sqlstore.DriverSQLite, cfg.DatabaseDSN, logger)
	case config.SinkPostgres:
		return sqlstore.Open(sqlstore.DriverPostgres, cfg.DatabaseDSN, logger)
	case config.SinkKafka:
		return kafkaadapter.NewWriter(cfg, logger), nil
	case config.SinkAMQP:
		return rabbitmq.Dial(ctx, cfg.AMQPURL, cfg.AMQPQueue, logger)
	case config.SinkXLSX:
		return nopCloser{xlsx.NewWorkbook(cfg.XLSXPath, logger)}, nil
	}
	return nil, fmt.Errorf("unknown SINK %q", cfg.Sink)
}
