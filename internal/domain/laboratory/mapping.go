package laboratory

import (
	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
)

// Test statuses after filtering.
const (
	StatusCompleted = "Completed"
	StatusPending   = "Pending"
	StatusCancelled = "Cancelled"
)

// Results shown for a test.
const (
	ResultInRange    = "In Range"
	ResultOutOfRange = "Out of Range"
)

func MapCovid19Orders(r phsa.Result[[]*PhsaCovid19Order]) Covid19OrderResult {
	orders := make([]Covid19Order, 0, len(r.Result))
	for _, o := range r.Result {
		if o == nil {
			continue
		}
		orders = append(orders, MapCovid19Order(*o))
	}
	return Covid19OrderResult{
		Loaded:        r.LoadState.Loaded(),
		RetryIn:       r.LoadState.RetryIn(),
		Covid19Orders: orders,
	}
}

func MapCovid19Order(o PhsaCovid19Order) Covid19Order {
	results := make([]Covid19Result, 0, len(o.LabResults))
	for _, lr := range o.LabResults {
		if lr == nil {
			continue
		}
		results = append(results, MapCovid19Result(*lr))
	}
	return Covid19Order{
		ID:                  o.ID,
		PHN:                 o.PHN,
		OrderingProviderIDs: o.OrderingProviderIDs,
		OrderingProviders:   o.OrderingProviders,
		ReportingLab:        o.ReportingLab,
		Location:            o.Location,
		OrmOrOru:            o.OrmOrOru,
		MessageDateTime:     o.MessageDateTime.Time,
		MessageID:           o.MessageID,
		AdditionalData:      o.AdditionalData,
		ReportAvailable:     o.ReportAvailable,
		Covid19Results:      results,
	}
}

func MapCovid19Result(r PhsaCovid19Result) Covid19Result {
	desc := r.ResultDescription
	if desc == nil {
		desc = []string{}
	}
	return Covid19Result{
		ID:                r.ID,
		TestType:          r.TestType,
		OutOfRange:        r.OutOfRange,
		CollectedDateTime: r.CollectedDateTime.Time,
		TestStatus:        r.TestStatus,
		LabResultOutcome:  r.LabResultOutcome,
		ResultDescription: desc,
		ResultLink:        r.ResultLink,
		ReceivedDateTime:  r.ReceivedDateTime.Ptr(),
		ResultDateTime:    r.ResultDateTime.Ptr(),
		Loinc:             r.Loinc,
		LoincName:         r.LoincName,
	}
}

// MapLaboratorySummary maps a PLIS summary. A nil summary is an empty,
// loaded result.
func MapLaboratorySummary(r phsa.Result[*PhsaLaboratorySummary]) LaboratoryOrderResult {
	out := LaboratoryOrderResult{
		Loaded:           r.LoadState.Loaded(),
		Queued:           r.LoadState.Queued,
		RetryIn:          r.LoadState.RetryIn(),
		LaboratoryOrders: []LaboratoryOrder{},
	}
	if r.Result == nil {
		return out
	}
	for _, o := range r.Result.LabOrders {
		if o == nil {
			continue
		}
		out.LaboratoryOrders = append(out.LaboratoryOrders, MapLaboratoryOrder(*o))
	}
	return out
}

func MapLaboratoryOrder(o PhsaLaboratoryOrder) LaboratoryOrder {
	tests := make([]LaboratoryTest, 0, len(o.LabBatteries))
	for _, t := range o.LabBatteries {
		if t == nil {
			continue
		}
		tests = append(tests, MapLaboratoryTest(*t))
	}
	return LaboratoryOrder{
		LabPdfID:           o.LabPdfID,
		ReportID:           o.ReportID,
		CommonName:         o.CommonName,
		OrderingProvider:   o.OrderingProvider,
		CollectionDateTime: o.CollectionDateTime.Ptr(),
		TimelineDateTime:   o.TimelineDateTime.Time,
		ReportingSource:    o.ReportingSource,
		OrderStatus:        o.OrderStatus,
		ReportAvailable:    o.PdfReportAvailable,
		LaboratoryTests:    tests,
	}
}

func MapLaboratoryTest(t PhsaLaboratoryTest) LaboratoryTest {
	filtered := FilterTestStatus(t.PlisTestStatus)
	return LaboratoryTest{
		BatteryType:        t.BatteryType,
		ObxID:              t.ObxID,
		OutOfRange:         t.OutOfRange,
		Loinc:              t.Loinc,
		TestStatus:         t.PlisTestStatus,
		FilteredTestStatus: filtered,
		Result:             testResult(filtered, t.OutOfRange),
	}
}

// FilterTestStatus folds PLIS test statuses into Completed, Pending and
// Cancelled. Unknown statuses pass through.
func FilterTestStatus(plis string) string {
	switch plis {
	case "Final", "Corrected", "Amended", "Completed":
		return StatusCompleted
	case "Active", "Pending", "Partial", "Preliminary":
		return StatusPending
	case "Cancelled":
		return StatusCancelled
	default:
		return plis
	}
}

func testResult(filtered string, outOfRange bool) string {
	if filtered != StatusCompleted {
		return filtered
	}
	if outOfRange {
		return ResultOutOfRange
	}
	return ResultInRange
}

func MapReport(d PhsaReportDocument) LaboratoryReport {
	return LaboratoryReport{MediaType: d.MediaType, Encoding: d.Encoding, Report: d.Data}
}
