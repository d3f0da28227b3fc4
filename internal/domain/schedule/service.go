package schedule

import (
	"context"
)

type Service struct {
	repo     Repository
	vaccines VaccineInfoRepository
	importer *Importer
}

func NewService(repo Repository, vaccines VaccineInfoRepository, importer *Importer) *Service {
	return &Service{repo: repo, vaccines: vaccines, importer: importer}
}

func (s *Service) GetAntigen(ctx context.Context, targetDisease string) (*Antigen, error) {
	return s.repo.GetAntigen(ctx, targetDisease)
}

func (s *Service) ListAntigens(ctx context.Context) ([]*Antigen, error) {
	return s.repo.ListAntigens(ctx)
}

func (s *Service) GetVaccineInfo(ctx context.Context, cvxCode int) (*VaccineInfo, error) {
	return s.vaccines.GetByCVX(ctx, cvxCode)
}

func (s *Service) ListVaccineInfos(ctx context.Context) ([]*VaccineInfo, error) {
	return s.vaccines.List(ctx)
}

// Import loads every antigen document under scheduleDir and, when cvxMapFile
// is non-empty, the CVX mapping document as well.
func (s *Service) Import(ctx context.Context, scheduleDir, cvxMapFile string) error {
	if err := s.importer.ImportDirectory(ctx, scheduleDir); err != nil {
		return err
	}
	if cvxMapFile != "" {
		if err := s.importer.ImportCVXFile(ctx, cvxMapFile); err != nil {
			return err
		}
	}
	return nil
}
