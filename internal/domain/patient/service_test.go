package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/izcheck/izcheck/pkg/timecalc"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository())
}

func TestCreatePatientValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		p    Patient
	}{
		{"missing first name", Patient{LastName: "Doe", DOB: timecalc.NewDate(2010, time.March, 1)}},
		{"missing last name", Patient{FirstName: "Jo", DOB: timecalc.NewDate(2010, time.March, 1)}},
		{"missing dob", Patient{FirstName: "Jo", LastName: "Doe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.CreatePatient(ctx, &tc.p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCreatePatientNormalizesGender(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := map[string]string{
		"Female":   "female",
		"MALE":     "male",
		"":         "unknown",
		"other":    "unknown",
		"unknown ": "unknown",
	}
	for in, want := range cases {
		p := &Patient{FirstName: "Jo", LastName: "Doe", Gender: in, DOB: timecalc.NewDate(2010, time.March, 1)}
		if err := svc.CreatePatient(ctx, p); err != nil {
			t.Fatalf("CreatePatient(%q): %v", in, err)
		}
		if p.Gender != want {
			t.Errorf("gender %q normalized to %q, want %q", in, p.Gender, want)
		}
	}
}

func TestPatientAge(t *testing.T) {
	p := &Patient{DOB: timecalc.NewDate(2010, time.June, 15)}
	asOf := timecalc.NewDate(2015, time.June, 14)
	if got := p.Age(asOf); got != 4 {
		t.Errorf("age day before birthday = %d, want 4", got)
	}
	asOf = timecalc.NewDate(2015, time.June, 15)
	if got := p.Age(asOf); got != 5 {
		t.Errorf("age on birthday = %d, want 5", got)
	}
	if got := p.AgeInDays(timecalc.NewDate(2010, time.June, 25)); got != 10 {
		t.Errorf("age in days = %d, want 10", got)
	}
}

func TestAddDoseValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := &Patient{FirstName: "Jo", LastName: "Doe", DOB: timecalc.NewDate(2010, time.March, 1)}
	if err := svc.CreatePatient(ctx, p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	if err := svc.AddDose(ctx, &VaccineDose{PatientID: p.ID, CVXCode: 20}); err == nil {
		t.Error("expected error for missing date")
	}
	if err := svc.AddDose(ctx, &VaccineDose{PatientID: p.ID, DateAdministered: timecalc.NewDate(2010, time.May, 1)}); err == nil {
		t.Error("expected error for missing cvx code")
	}
	err := svc.AddDose(ctx, &VaccineDose{
		PatientID:        uuid.New(),
		CVXCode:          20,
		DateAdministered: timecalc.NewDate(2010, time.May, 1),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err for unknown patient = %v, want ErrNotFound", err)
	}
}

func TestGetHistoryOrdersDoses(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := &Patient{FirstName: "Jo", LastName: "Doe", DOB: timecalc.NewDate(2010, time.March, 1)}
	if err := svc.CreatePatient(ctx, p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	dates := []timecalc.Date{
		timecalc.NewDate(2011, time.March, 1),
		timecalc.NewDate(2010, time.May, 1),
		timecalc.NewDate(2010, time.July, 1),
	}
	for _, d := range dates {
		if err := svc.AddDose(ctx, &VaccineDose{PatientID: p.ID, CVXCode: 20, DateAdministered: d}); err != nil {
			t.Fatalf("AddDose: %v", err)
		}
	}

	h, err := svc.GetHistory(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(h.Doses) != 3 {
		t.Fatalf("dose count = %d, want 3", len(h.Doses))
	}
	for i := 1; i < len(h.Doses); i++ {
		if h.Doses[i].DateAdministered.Before(h.Doses[i-1].DateAdministered) {
			t.Errorf("doses out of order at %d: %s before %s",
				i, h.Doses[i].DateAdministered, h.Doses[i-1].DateAdministered)
		}
	}
}

func TestFilterDosesByCVX(t *testing.T) {
	doses := []*VaccineDose{
		{CVXCode: 20},
		{CVXCode: 10},
		{CVXCode: 20},
		{CVXCode: 110},
	}
	got := FilterDosesByCVX(doses, []int{20, 110})
	if len(got) != 3 {
		t.Fatalf("filtered count = %d, want 3", len(got))
	}
	if got[0].CVXCode != 20 || got[1].CVXCode != 20 || got[2].CVXCode != 110 {
		t.Errorf("filtered order wrong: %v", got)
	}
	if FilterDosesByCVX(doses, nil) != nil {
		t.Error("empty code set should match nothing")
	}
}
