package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 检索管线指标
var (
	DocumentsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchat_documents_uploaded_total",
		Help: "成功入库的文档数量",
	})

	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchat_chunks_indexed_total",
		Help: "写入向量库的文本块数量",
	})

	DocumentsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchat_documents_deleted_total",
		Help: "删除的文档数量",
	})

	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_chat_requests_total",
		Help: "聊天请求数量",
	}, []string{"model"})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_provider_errors_total",
		Help: "外部模型调用失败数量",
	}, []string{"kind"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docchat_search_duration_seconds",
		Help:    "向量检索耗时",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler 返回Prometheus指标的HTTP处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
