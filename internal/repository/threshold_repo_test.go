package repository

import (
	"regexp"
	"testing"
	"time"

	"farm_telemetry/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestThresholdLoad_Empty(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sensor_config WHERE id = ?`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"ec_min"}))

	_, ok, err := NewThresholdSQLite(db).Load(ctx(t))
	if err != nil || ok {
		t.Fatalf("want (false, nil), got (%v, %v)", ok, err)
	}
}

func TestThresholdSaveAndLoad(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	th := models.DefaultThresholds()
	th.ECMin = 1.0
	th.UpdatedAt = at

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sensor_config`)).
		WithArgs(1, 1.0, th.ECMax, th.TankMaxMm, th.TempMinC, th.TempMaxC, th.WaterCriticalMm, th.WaterHighMm, at.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sensor_config WHERE id = ?`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"ec_min", "ec_max", "tank_max", "temp_min", "temp_max", "water_critical", "water_high", "updated_at"}).
			AddRow(1.0, th.ECMax, th.TankMaxMm, th.TempMinC, th.TempMaxC, th.WaterCriticalMm, th.WaterHighMm, at.UnixMilli()))

	repo := NewThresholdSQLite(db)
	if err := repo.Save(ctx(t), th); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := repo.Load(ctx(t))
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.ECMin != 1.0 || !got.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected thresholds: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}
