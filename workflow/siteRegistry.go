package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

type SiteRegistry struct {
	Repo   models.Repository
	Locker *KeyLocker
	Store  utils.ArtifactStore
	Logger *logrus.Logger
	Now    func() time.Time
}

// siteQRPayload is what the printed code at a site encodes; the scanning app reads the site id from it.
type siteQRPayload struct {
	SiteId int    `json:"site_id"`
	Name   string `json:"name"`
}

func (s *SiteRegistry) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

func (s *SiteRegistry) Register(ctx context.Context, input models.NewSite) (*models.Site, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	site := &models.Site{}
	input.Apply(site)
	if err := s.Repo.CreateSite(ctx, site); err != nil {
		return nil, err
	}
	return site, nil
}

// Update changes name, coordinates, radius or the active flag. Allowed after QR issuance.
func (s *SiteRegistry) Update(ctx context.Context, siteId int, input models.NewSite) (*models.Site, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	unlock, err := s.Locker.Lock(ctx, siteKey(siteId))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.Site
	err = s.Repo.Transaction(ctx, func(tx models.Repository) error {
		site, err := tx.GetSite(ctx, siteId)
		if err != nil {
			return err
		}
		input.Apply(site)
		if err := tx.UpdateSite(ctx, site); err != nil {
			return err
		}
		result = site
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Repo.ForgetSite(ctx, siteId)
	return result, nil
}

func (s *SiteRegistry) Get(ctx context.Context, siteId int) (*models.Site, error) {
	return s.Repo.GetSite(ctx, siteId)
}

func (s *SiteRegistry) List(ctx context.Context) ([]*models.Site, error) {
	return s.Repo.ListSites(ctx)
}

// IssueQR renders the site's printable QR code. A site gets exactly one.
func (s *SiteRegistry) IssueQR(ctx context.Context, siteId int) (*models.Site, error) {
	if s.Store == nil {
		return nil, errNoArtifactStore
	}
	unlock, err := s.Locker.Lock(ctx, siteKey(siteId))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.Site
	err = s.Repo.Transaction(ctx, func(tx models.Repository) error {
		site, err := tx.GetSite(ctx, siteId)
		if err != nil {
			return err
		}
		if site.QRIssuedAt != nil {
			return models.ErrQRAlreadyIssued
		}
		content, err := json.Marshal(siteQRPayload{SiteId: site.ID, Name: site.Name})
		if err != nil {
			return err
		}
		png, err := qrcode.Encode(string(content), qrcode.Medium, 256)
		if err != nil {
			return fmt.Errorf("encode qr: %w", err)
		}
		objectName := fmt.Sprintf("sites/%d/qr-%s.png", site.ID, uuid.NewString())
		ref, err := s.Store.Put(ctx, objectName, "image/png", png)
		if err != nil {
			return fmt.Errorf("store qr: %w", err)
		}
		issuedAt := s.now()
		site.QRIssuedAt = &issuedAt
		site.QRArtifactRef = ref
		if err := tx.UpdateSite(ctx, site); err != nil {
			return err
		}
		result = site
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Repo.ForgetSite(ctx, siteId)
	s.Logger.WithFields(logrus.Fields{
		"field":   "SiteRegistry",
		"site_id": siteId,
		"ref":     result.QRArtifactRef,
	}).Info("site qr issued")
	return result, nil
}
