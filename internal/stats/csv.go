package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"portwatch/internal/domain"
)

// CSVHeader is the export column set, matching the stats API row.
var CSVHeader = []string{
	"region", "public_ip", "port", "business_system",
	"avg_latency_ms", "packet_loss_rate", "total_probes", "successful_probes",
}

// WriteCSV renders aggregation rows as CSV. Absent latency exports as an
// empty cell rather than a fake number.
func WriteCSV(w io.Writer, rows []domain.TargetStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		avg := ""
		if r.AvgLatencyMS != nil {
			avg = strconv.FormatFloat(*r.AvgLatencyMS, 'f', 2, 64)
		}
		rec := []string{
			r.Region,
			r.PublicIP,
			strconv.Itoa(r.Port),
			r.BusinessSystem,
			avg,
			strconv.FormatFloat(r.PacketLossRate, 'f', 2, 64),
			strconv.FormatInt(r.TotalProbes, 10),
			strconv.FormatInt(r.SuccessfulProbes, 10),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
