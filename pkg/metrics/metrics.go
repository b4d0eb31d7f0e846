// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// nohubNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	nohubNamespace = "nohub"

	// 以下为当前使用的标签名。
	commandLabelName    = "command"
	lockedLabelName     = "locked"
	visibilityLabelName = "visibility"
	versionLabelName    = "version"
)

var (
	// buckets 为命令处理耗时直方图的桶划分，单位为秒。
	// 实际桶分布为：
	// [0.0001 0.0002 0.0004 ... 0.8192 1.6384]
	buckets = prometheus.ExponentialBuckets(0.0001, 2, 15)
)

// Metrics 是一个应用实例持有的全部指标。
//
// 每个实例使用独立的 Registry，同一进程内的多个实例（例如测试）互不干扰。
type Metrics struct {
	Registry *prometheus.Registry

	ExchangesTotal    *prometheus.CounterVec
	ExchangesFailed   *prometheus.CounterVec
	ExchangeDuration  *prometheus.HistogramVec
	SessionsTotal     prometheus.Gauge
	LobbiesTotal      *prometheus.GaugeVec
	ConnectionsActive prometheus.Gauge
	BuildInfo         *prometheus.GaugeVec
}

// New 创建全部指标，并注册到一个新的 Registry。
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		ExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: nohubNamespace,
				Name:      "exchanges_total",
				Help:      "number of handled commands",
			}, []string{commandLabelName}),

		ExchangesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: nohubNamespace,
				Name:      "exchanges_failed",
				Help:      "number of commands answered with an error",
			}, []string{commandLabelName}),

		ExchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: nohubNamespace,
				Name:      "exchange_duration_seconds",
				Help:      "time spent handling a command",
				Buckets:   buckets,
			}, []string{commandLabelName}),

		SessionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: nohubNamespace,
				Name:      "sessions_total",
				Help:      "number of open sessions",
			}),

		LobbiesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: nohubNamespace,
				Name:      "lobbies_total",
				Help:      "number of active lobbies",
			}, []string{lockedLabelName, visibilityLabelName}),

		ConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: nohubNamespace,
				Name:      "connections_active",
				Help:      "number of open connections",
			}),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: nohubNamespace,
				Name:      "build_info",
				Help:      "build information, always 1",
			}, []string{versionLabelName}),
	}
	m.Register(m.Registry)
	return m
}

// Register 注册当前定义的所有指标以及 Go 运行时指标。
func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(m.ExchangesTotal)
	r.MustRegister(m.ExchangesFailed)
	r.MustRegister(m.ExchangeDuration)
	r.MustRegister(m.SessionsTotal)
	r.MustRegister(m.LobbiesTotal)
	r.MustRegister(m.ConnectionsActive)
	r.MustRegister(m.BuildInfo)
	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// SetBuildInfo 记录当前运行的版本。
func (m *Metrics) SetBuildInfo(version string) {
	m.BuildInfo.WithLabelValues(version).Set(1)
}

// LobbyLabels 返回大厅状态对应的 nohub_lobbies_total 标签值。
func LobbyLabels(isLocked, isVisible bool) (locked, visibility string) {
	locked = "false"
	if isLocked {
		locked = "true"
	}
	visibility = "hidden"
	if isVisible {
		visibility = "visible"
	}
	return locked, visibility
}
