package bolt

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var _ prometheus.Collector = (*KVStore)(nil)

var (
	bucketKeysDesc = prometheus.NewDesc(
		"scorestore_bucket_keys",
		"Number of keys in each top level bucket of the store",
		[]string{"bucket"}, nil)

	txDesc = func(kind string) *prometheus.Desc {
		return prometheus.NewDesc("boltdb_"+kind+"_total", "Total number of boltdb "+kind, nil, nil)
	}
	readsDesc  = txDesc("reads")
	writesDesc = txDesc("writes")
)

// Describe implements prometheus.Collector.
func (s *KVStore) Describe(ch chan<- *prometheus.Desc) {
	ch <- bucketKeysDesc
	ch <- readsDesc
	ch <- writesDesc
}

// Collect reports transaction counters and the key count of every bucket.
// A closed store reports nothing.
func (s *KVStore) Collect(ch chan<- prometheus.Metric) {
	if s.db == nil {
		return
	}

	stats := s.db.Stats()
	ch <- prometheus.MustNewConstMetric(readsDesc, prometheus.CounterValue, float64(stats.TxN))
	ch <- prometheus.MustNewConstMetric(writesDesc, prometheus.CounterValue, float64(stats.TxStats.Write))

	buckets, err := s.Buckets()
	if err != nil {
		s.log.Warn("Unable to collect bucket statistics", zap.Error(err))
		return
	}
	for _, b := range buckets {
		ch <- prometheus.MustNewConstMetric(bucketKeysDesc, prometheus.GaugeValue, float64(b.Keys), b.Name)
	}
}
