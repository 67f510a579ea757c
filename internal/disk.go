package internal

import (
	"fmt"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// DiskMonitor reports how full the filesystem holding the mirrors is.
// Mirrors are never evicted, so this is the only signal operators get.
type DiskMonitor struct {
	path        string
	warnPercent float64
	log         *logrus.Logger
	metrics     *Metrics
	usage       func(path string) (*disk.UsageStat, error)
}

func NewDiskMonitor(path string, warnPercent float64, log *logrus.Logger, metrics *Metrics) *DiskMonitor {
	if log == nil {
		log = logrus.New()
	}
	return &DiskMonitor{
		path:        path,
		warnPercent: warnPercent,
		log:         log,
		metrics:     metrics,
		usage:       disk.Usage,
	}
}

// Check returns the used percentage and logs a warning at or above the
// configured threshold.
func (d *DiskMonitor) Check() (float64, error) {
	stat, err := d.usage(d.path)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", d.path, err)
	}

	d.metrics.diskUsed(stat.UsedPercent)

	fields := logrus.Fields{
		"path":         d.path,
		"used_percent": fmt.Sprintf("%.1f", stat.UsedPercent),
		"free_gb":      fmt.Sprintf("%.2f", float64(stat.Free)/1e9),
		"total_gb":     fmt.Sprintf("%.2f", float64(stat.Total)/1e9),
	}
	if stat.UsedPercent >= d.warnPercent {
		d.log.WithFields(fields).Warn("mirror disk usage above threshold")
	} else {
		d.log.WithFields(fields).Debug("mirror disk usage")
	}

	return stat.UsedPercent, nil
}
