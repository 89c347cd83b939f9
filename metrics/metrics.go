// Package metrics provides Prometheus metrics for the transfer lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry for all rushupload metrics.
var Registry = prometheus.NewRegistry()

var (
	UploadsInitiated = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "rushupload_uploads_initiated_total",
		Help: "Multipart uploads initiated",
	})
	UploadsCompleted = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "rushupload_uploads_completed_total",
		Help: "Multipart uploads completed",
	})
	UploadsAborted = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "rushupload_uploads_aborted_total",
		Help: "Multipart uploads aborted",
	})

	// TransfersCreated is labeled by kind: link or mail.
	TransfersCreated = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "rushupload_transfers_created_total",
		Help: "Links and mails created",
	}, []string{"kind"})
	TransferBytes = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "rushupload_transfer_bytes_total",
		Help: "Bytes committed to account usage by created transfers",
	})
	ConstraintRejections = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "rushupload_constraint_rejections_total",
		Help: "Transfers rejected by tier constraints",
	}, []string{"reason"})

	// DownloadRequests is labeled by result: distinct or repeat.
	DownloadRequests = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "rushupload_download_requests_total",
		Help: "Download requests that were issued a read URL",
	}, []string{"result"})

	MailDeliveryFailures = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "rushupload_mail_delivery_failures_total",
		Help: "Notification messages that could not be delivered",
	})

	FilesExpired = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "rushupload_files_expired_total",
		Help: "Files marked expired by the expiry sweep",
	})
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
