package laboratory

import (
	"time"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
)

// PHSA wire shapes. Collections hold pointers so that null elements in a
// reply can be told apart and skipped while mapping.

type PhsaCovid19Order struct {
	ID                  string               `json:"id"`
	PHN                 string               `json:"phn"`
	OrderingProviderIDs string               `json:"orderingProviderIds"`
	OrderingProviders   string               `json:"orderingProviders"`
	ReportingLab        string               `json:"reportingLab"`
	Location            string               `json:"location"`
	OrmOrOru            string               `json:"ormOrOru"`
	MessageDateTime     phsa.Time            `json:"messageDateTime"`
	MessageID           string               `json:"messageId"`
	AdditionalData      string               `json:"additionalData"`
	ReportAvailable     bool                 `json:"reportAvailable"`
	LabResults          []*PhsaCovid19Result `json:"labResults"`
}

type PhsaCovid19Result struct {
	ID                string    `json:"id"`
	TestType          string    `json:"testType"`
	OutOfRange        bool      `json:"outOfRange"`
	CollectedDateTime phsa.Time `json:"collectedDateTime"`
	TestStatus        string    `json:"testStatus"`
	LabResultOutcome  string    `json:"labResultOutcome"`
	ResultDescription []string  `json:"resultDescription"`
	ResultLink        string    `json:"resultLink"`
	ReceivedDateTime  phsa.Time `json:"receivedDateTime"`
	ResultDateTime    phsa.Time `json:"resultDateTime"`
	Loinc             string    `json:"loinc"`
	LoincName         string    `json:"loincName"`
}

type PhsaLaboratorySummary struct {
	LastRefreshDate phsa.Time              `json:"lastRefreshDate"`
	LabOrders       []*PhsaLaboratoryOrder `json:"labOrders"`
	LabOrderCount   int                    `json:"labOrderCount"`
}

type PhsaLaboratoryOrder struct {
	ReportID           string                `json:"reportId"`
	LabPdfID           string                `json:"labPdfId"`
	CommonName         string                `json:"commonName"`
	OrderingProvider   string                `json:"orderingProvider"`
	CollectionDateTime phsa.Time             `json:"collectionDateTime"`
	TimelineDateTime   phsa.Time             `json:"timelineDateTime"`
	ReportingSource    string                `json:"reportingSource"`
	OrderStatus        string                `json:"orderStatus"`
	PdfReportAvailable bool                  `json:"pdfReportAvailable"`
	LabBatteries       []*PhsaLaboratoryTest `json:"labBatteries"`
}

type PhsaLaboratoryTest struct {
	BatteryType    string `json:"batteryType"`
	ObxID          string `json:"obxId"`
	OutOfRange     bool   `json:"outOfRange"`
	Loinc          string `json:"loinc"`
	PlisTestStatus string `json:"plisTestStatus"`
}

// PhsaReportDocument is a base64 encoded report file.
type PhsaReportDocument struct {
	MediaType string `json:"mediaType"`
	Encoding  string `json:"encoding"`
	Data      string `json:"data"`
}

// View-models returned to the caller.

type Covid19Order struct {
	ID                  string          `json:"id"`
	PHN                 string          `json:"phn"`
	OrderingProviderIDs string          `json:"orderingProviderIds"`
	OrderingProviders   string          `json:"orderingProviders"`
	ReportingLab        string          `json:"reportingLab"`
	Location            string          `json:"location"`
	OrmOrOru            string          `json:"ormOrOru"`
	MessageDateTime     time.Time       `json:"messageDateTime"`
	MessageID           string          `json:"messageId"`
	AdditionalData      string          `json:"additionalData"`
	ReportAvailable     bool            `json:"reportAvailable"`
	Covid19Results      []Covid19Result `json:"labResults"`
}

type Covid19Result struct {
	ID                string     `json:"id"`
	TestType          string     `json:"testType"`
	OutOfRange        bool       `json:"outOfRange"`
	CollectedDateTime time.Time  `json:"collectedDateTime"`
	TestStatus        string     `json:"testStatus"`
	LabResultOutcome  string     `json:"labResultOutcome"`
	ResultDescription []string   `json:"resultDescription"`
	ResultLink        string     `json:"resultLink"`
	ReceivedDateTime  *time.Time `json:"receivedDateTime"`
	ResultDateTime    *time.Time `json:"resultDateTime"`
	Loinc             string     `json:"loinc"`
	LoincName         string     `json:"loincName"`
}

type Covid19OrderResult struct {
	Loaded        bool           `json:"loaded"`
	RetryIn       int            `json:"retryin"`
	Covid19Orders []Covid19Order `json:"orders"`
}

type LaboratoryOrder struct {
	LabPdfID           string           `json:"labPdfId"`
	ReportID           string           `json:"reportId"`
	CommonName         string           `json:"commonName"`
	OrderingProvider   string           `json:"orderingProvider"`
	CollectionDateTime *time.Time       `json:"collectionDateTime"`
	TimelineDateTime   time.Time        `json:"timelineDateTime"`
	ReportingSource    string           `json:"reportingSource"`
	OrderStatus        string           `json:"orderStatus"`
	ReportAvailable    bool             `json:"reportAvailable"`
	LaboratoryTests    []LaboratoryTest `json:"laboratoryTests"`
}

type LaboratoryTest struct {
	BatteryType        string `json:"batteryType"`
	ObxID              string `json:"obxId"`
	OutOfRange         bool   `json:"outOfRange"`
	Loinc              string `json:"loinc"`
	TestStatus         string `json:"testStatus"`
	FilteredTestStatus string `json:"filteredTestStatus"`
	Result             string `json:"result"`
}

type LaboratoryOrderResult struct {
	Loaded           bool              `json:"loaded"`
	Queued           bool              `json:"queued"`
	RetryIn          int               `json:"retryin"`
	LaboratoryOrders []LaboratoryOrder `json:"orders"`
}

type LaboratoryReport struct {
	MediaType string `json:"mediaType"`
	Encoding  string `json:"encoding"`
	Report    string `json:"report"`
}
