package transform

import (
	"database/sql"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

var (
	testLogger = utils.NewNopLogger()
	testToday  = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ns(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nt(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func nf(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

func currentMeta(effective time.Time) models.SCD2Metadata {
	return models.SCD2Metadata{EffectiveDate: effective, CurrentFlag: models.CurrentFlagYes}
}

func expiredMeta(effective, end time.Time) models.SCD2Metadata {
	return models.SCD2Metadata{
		EffectiveDate: effective,
		EndDate:       nt(end),
		CurrentFlag:   models.CurrentFlagNo,
	}
}

func customerRow(sk, key, firstName string, meta models.SCD2Metadata) models.CustomerDimension {
	return models.CustomerDimension{
		CustomerSK:   sk,
		CustomerKey:  key,
		FirstName:    ns(firstName),
		LastName:     ns("Smith"),
		Gender:       ns("M"),
		BirthDate:    nt(day(1980, 5, 17)),
		Country:      ns("Germany"),
		SCD2Metadata: meta,
	}
}
