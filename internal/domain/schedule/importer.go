package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Importer translates the published supporting-data XML into the schedule
// model. Antigen documents and the CVX mapping document are ingested
// separately; each antigen import replaces that antigen's whole tree.
type Importer struct {
	repo     Repository
	vaccines VaccineInfoRepository
	logger   zerolog.Logger
}

func NewImporter(repo Repository, vaccines VaccineInfoRepository, logger zerolog.Logger) *Importer {
	return &Importer{
		repo:     repo,
		vaccines: vaccines,
		logger:   logger.With().Str("component", "schedule_importer").Logger(),
	}
}

// ImportDirectory ingests every antigen document (*.xml) under dir. Files
// whose root is not antigenSupportingData (such as the CVX mapping document,
// which ships alongside the antigen files) are skipped; ImportCVXFile
// handles the mapping separately.
func (imp *Importer) ImportDirectory(ctx context.Context, dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return fmt.Errorf("scanning schedule dir: %w", err)
	}
	imported := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		m, err := XMLToMap(data)
		if err != nil {
			return fmt.Errorf("importing %s: %w", filepath.Base(path), err)
		}
		if node(m).child("antigenSupportingData") == nil {
			imp.logger.Debug().Str("file", filepath.Base(path)).Msg("skipping non-antigen document")
			continue
		}
		if _, err := imp.ImportAntigen(ctx, data); err != nil {
			return fmt.Errorf("importing %s: %w", filepath.Base(path), err)
		}
		imported++
	}
	imp.logger.Info().Int("files", imported).Str("dir", dir).Msg("antigen import complete")
	return nil
}

func (imp *Importer) ImportFile(ctx context.Context, path string) (*Antigen, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return imp.ImportAntigen(ctx, data)
}

// ImportAntigen parses one antigen document and saves the resulting tree,
// replacing any prior antigen for the same target disease.
func (imp *Importer) ImportAntigen(ctx context.Context, data []byte) (*Antigen, error) {
	m, err := XMLToMap(data)
	if err != nil {
		return nil, err
	}
	root := node(m).child("antigenSupportingData")
	if root == nil {
		return nil, fmt.Errorf("%w: missing antigenSupportingData element", ErrParse)
	}
	seriesNodes := root.list("series")
	if len(seriesNodes) == 0 {
		return nil, fmt.Errorf("%w: document has no series", ErrParse)
	}

	antigen := &Antigen{
		ID:            uuid.New(),
		TargetDisease: NormalizeDisease(seriesNodes[0].str("targetDisease")),
	}
	if antigen.TargetDisease == "" {
		return nil, fmt.Errorf("%w: series has no targetDisease", ErrParse)
	}
	for _, sn := range seriesNodes {
		series, err := buildSeries(sn)
		if err != nil {
			return nil, err
		}
		antigen.Series = append(antigen.Series, series)
	}

	if err := imp.repo.SaveAntigen(ctx, antigen); err != nil {
		return nil, fmt.Errorf("saving antigen %s: %w", antigen.TargetDisease, err)
	}
	imp.logger.Info().
		Str("antigen", antigen.TargetDisease).
		Int("series", len(antigen.Series)).
		Msg("antigen imported")
	return antigen, nil
}

func buildSeries(sn node) (*Series, error) {
	series := &Series{ID: uuid.New(), Name: sn.str("seriesName")}
	for i, dn := range sn.list("seriesDose") {
		dose, err := buildSeriesDose(dn, i+1)
		if err != nil {
			return nil, fmt.Errorf("series %q dose %d: %w", series.Name, i+1, err)
		}
		series.Doses = append(series.Doses, dose)
	}
	return series, nil
}

func buildSeriesDose(dn node, doseNumber int) (*SeriesDose, error) {
	dose := &SeriesDose{
		ID:            uuid.New(),
		DoseNumber:    doseNumber,
		RecurringDose: dn.str("recurringDose") == "Yes",
	}
	for _, g := range dn.strList("requiredGender") {
		dose.RequiredGender = append(dose.RequiredGender, strings.ToLower(g))
	}

	var err error
	if dose.Intervals, err = buildIntervals(dn); err != nil {
		return nil, err
	}
	dose.DoseVaccines = buildDoseVaccines(dn)
	if dose.ConditionalSkip, err = buildConditionalSkip(dn.child("conditionalSkip")); err != nil {
		return nil, err
	}
	return dose, nil
}

func buildIntervals(dn node) ([]*Interval, error) {
	var out []*Interval
	for _, in := range dn.list("interval") {
		iv, err := buildInterval(in, false)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	for _, in := range dn.list("allowableInterval") {
		iv, err := buildInterval(in, true)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

func buildInterval(in node, allowable bool) (*Interval, error) {
	iv := &Interval{
		ID:                  uuid.New(),
		Allowable:           allowable,
		IntervalAbsoluteMin: in.str("absMinInt"),
	}
	if iv.IntervalAbsoluteMin == "" {
		return nil, fmt.Errorf("%w: interval missing absMinInt", ErrParse)
	}
	if min := in.str("minInt"); min != "" {
		iv.IntervalMin = &min
	}
	if from := in.str("fromTargetDose"); from != "" {
		n, err := strconv.Atoi(from)
		if err != nil {
			return nil, fmt.Errorf("%w: fromTargetDose %q is not a number", ErrParse, from)
		}
		iv.TargetDoseNumber = &n
	}
	if recent := in.child("fromMostRecent"); recent != nil {
		if cvx := recent.str("cvx"); cvx != "" {
			code, err := strconv.Atoi(cvx)
			if err != nil {
				return nil, fmt.Errorf("%w: fromMostRecent cvx %q is not a number", ErrParse, cvx)
			}
			iv.RecentCVXCode = &code
		}
		if vt := recent.str("vaccineType"); vt != "" {
			iv.RecentVaccineType = &vt
		}
	}
	return iv, nil
}

func buildDoseVaccines(dn node) []*DoseVaccine {
	var out []*DoseVaccine
	for _, vn := range dn.list("preferableVaccine") {
		out = append(out, buildDoseVaccine(vn, true))
	}
	for _, vn := range dn.list("allowableVaccine") {
		out = append(out, buildDoseVaccine(vn, false))
	}
	return out
}

func buildDoseVaccine(vn node, preferable bool) *DoseVaccine {
	cvx, _ := strconv.Atoi(vn.str("cvx"))
	return &DoseVaccine{
		ID:          uuid.New(),
		VaccineType: vn.str("vaccineType"),
		CVXCode:     cvx,
		Preferable:  preferable,
	}
}

func buildConditionalSkip(cn node) (*ConditionalSkip, error) {
	if cn == nil {
		return nil, nil
	}
	skip := &ConditionalSkip{ID: uuid.New(), SetLogic: cn.str("setLogic")}
	if skip.SetLogic == "" {
		skip.SetLogic = "n/a"
	}
	for i, sn := range cn.list("set") {
		set := &ConditionalSkipSet{ID: uuid.New(), SetID: i + 1}
		for j, condNode := range sn.list("condition") {
			cond, err := buildSkipCondition(condNode, j+1)
			if err != nil {
				return nil, fmt.Errorf("set %d: %w", set.SetID, err)
			}
			set.Conditions = append(set.Conditions, cond)
		}
		if len(set.Conditions) == 0 {
			return nil, fmt.Errorf("%w: conditionalSkip set %d has no conditions", ErrParse, set.SetID)
		}
		skip.Sets = append(skip.Sets, set)
	}
	if len(skip.Sets) == 0 {
		return nil, fmt.Errorf("%w: conditionalSkip has no sets", ErrParse)
	}
	return skip, nil
}

func buildSkipCondition(cn node, conditionID int) (*ConditionalSkipCondition, error) {
	cond := &ConditionalSkipCondition{
		ID:             uuid.New(),
		ConditionID:    conditionID,
		ConditionType:  cn.str("conditionType"),
		BeginAge:       cn.str("beginAge"),
		EndAge:         cn.str("endAge"),
		StartDate:      cn.str("startDate"),
		EndDate:        cn.str("endDate"),
		Interval:       cn.str("interval"),
		DoseType:       cn.str("doseType"),
		DoseCountLogic: cn.str("doseCountLogic"),
	}
	if dc := cn.str("doseCount"); dc != "" {
		n, err := strconv.Atoi(dc)
		if err != nil {
			return nil, fmt.Errorf("%w: doseCount %q is not a number", ErrParse, dc)
		}
		cond.DoseCount = &n
	}
	if types := cn.str("vaccineTypes"); types != "" {
		for _, t := range strings.Split(types, ";") {
			if t = strings.TrimSpace(t); t != "" {
				cond.VaccineTypes = append(cond.VaccineTypes, t)
			}
		}
	}
	return cond, nil
}

// ImportCVXFile ingests the CVX-to-antigen mapping document.
func (imp *Importer) ImportCVXFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return imp.ImportCVXMap(ctx, data)
}

// ImportCVXMap parses the CVX mapping document. Each mapping is replaced
// wholesale, and any antigen named by a mapping that has not been imported
// yet is created bare so lookups by disease never dangle.
func (imp *Importer) ImportCVXMap(ctx context.Context, data []byte) error {
	m, err := XMLToMap(data)
	if err != nil {
		return err
	}
	root := node(m)
	if wrapper := root.child("cvxMappings"); wrapper != nil {
		root = wrapper
	}
	maps := root.list("cvxMap")
	if len(maps) == 0 {
		return fmt.Errorf("%w: document has no cvxMap elements", ErrParse)
	}

	for _, mn := range maps {
		info, err := buildVaccineInfo(mn)
		if err != nil {
			return err
		}
		for _, disease := range info.Antigens {
			if _, err := imp.repo.EnsureAntigen(ctx, disease); err != nil {
				return fmt.Errorf("ensuring antigen %s: %w", disease, err)
			}
		}
		if err := imp.vaccines.Replace(ctx, info); err != nil {
			return fmt.Errorf("replacing cvx %d: %w", info.CVXCode, err)
		}
	}
	imp.logger.Info().Int("mappings", len(maps)).Msg("cvx map imported")
	return nil
}

func buildVaccineInfo(mn node) (*VaccineInfo, error) {
	cvx := mn.str("cvx")
	code, err := strconv.Atoi(cvx)
	if err != nil {
		return nil, fmt.Errorf("%w: cvx %q is not a number", ErrParse, cvx)
	}
	info := &VaccineInfo{
		CVXCode:          code,
		ShortDescription: strings.ToLower(mn.str("shortDescription")),
	}
	for _, an := range mn.list("association") {
		if disease := NormalizeDisease(an.str("antigen")); disease != "" {
			info.Antigens = append(info.Antigens, disease)
		}
	}
	if len(info.Antigens) == 0 {
		return nil, fmt.Errorf("%w: cvx %d has no antigen associations", ErrParse, code)
	}
	return info, nil
}
