package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	colmetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/tinytelemetry/flatstat/internal/model"
)

// DefaultOTLPTimeout bounds one Export RPC.
const DefaultOTLPTimeout = 10 * time.Second

// OTLPReporter exports numeric metrics as OTLP gauges over gRPC.
// String-kind metrics are skipped: OTLP number datapoints have no string
// representation. Integer values wider than int64 are exported as doubles,
// the closest the protocol offers.
type OTLPReporter struct {
	conn     *grpc.ClientConn
	client   colmetricpb.MetricsServiceClient
	resource *resourcepb.Resource
	timeout  time.Duration
}

// NewOTLP creates an OTLP/gRPC metrics reporter talking to endpoint
// (host:port, plaintext). serviceName becomes the service.name resource
// attribute.
func NewOTLP(endpoint, serviceName string) (*OTLPReporter, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("reporter: otlp client %s: %w", endpoint, err)
	}
	return &OTLPReporter{
		conn:    conn,
		client:  colmetricpb.NewMetricsServiceClient(conn),
		timeout: DefaultOTLPTimeout,
		resource: &resourcepb.Resource{
			Attributes: []*commonpb.KeyValue{{
				Key: "service.name",
				Value: &commonpb.AnyValue{
					Value: &commonpb.AnyValue_StringValue{StringValue: serviceName},
				},
			}},
		},
	}, nil
}

func (r *OTLPReporter) Name() string { return "otlp" }

func (r *OTLPReporter) Report(ctx context.Context, snap model.Snapshot) error {
	req := buildExportRequest(snap, r.resource)
	if len(req.ResourceMetrics) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.client.Export(ctx, req); err != nil {
		return fmt.Errorf("reporter: otlp export: %w", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (r *OTLPReporter) Close() error {
	return r.conn.Close()
}

func buildExportRequest(snap model.Snapshot, resource *resourcepb.Resource) *colmetricpb.ExportMetricsServiceRequest {
	end := uint64(snap.TakenAt.UnixNano())
	start := uint64(snap.TakenAt.Add(-snap.Duration).UnixNano())

	metrics := make([]*metricpb.Metric, 0, len(snap.Records))
	for _, rec := range sortedRecords(snap) {
		point := numberPoint(rec)
		if point == nil {
			continue
		}
		point.StartTimeUnixNano = start
		point.TimeUnixNano = end

		metrics = append(metrics, &metricpb.Metric{
			Name: rec.Name,
			Data: &metricpb.Metric_Gauge{
				Gauge: &metricpb.Gauge{
					DataPoints: []*metricpb.NumberDataPoint{point},
				},
			},
		})
	}
	if len(metrics) == 0 {
		return &colmetricpb.ExportMetricsServiceRequest{}
	}

	return &colmetricpb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricpb.ResourceMetrics{{
			Resource: resource,
			ScopeMetrics: []*metricpb.ScopeMetrics{{
				Scope:   &commonpb.InstrumentationScope{Name: "flatstat"},
				Metrics: metrics,
			}},
		}},
	}
}

func numberPoint(rec model.MetricRecord) *metricpb.NumberDataPoint {
	switch v := rec.Value.(type) {
	case int64:
		return &metricpb.NumberDataPoint{
			Value: &metricpb.NumberDataPoint_AsInt{AsInt: v},
		}
	case float64:
		return &metricpb.NumberDataPoint{
			Value: &metricpb.NumberDataPoint_AsDouble{AsDouble: v},
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &metricpb.NumberDataPoint{
				Value: &metricpb.NumberDataPoint_AsDouble{AsDouble: f},
			}
		}
	}
	return nil
}
