package storage

import (
	"encoding/json"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
)

// trackingModelToDomain converts an ActiveTrackingModel (GORM) to domain.ActiveTracking
func trackingModelToDomain(m ActiveTrackingModel) domain.ActiveTracking {
	return domain.ActiveTracking{
		CooldownExpiresAt: m.CooldownExpiresAt,
		EnterAt:           m.EnterAt,
		ExitAt:            m.ExitAt,
		LocationID:        m.LocationID,
		LocationName:      m.LocationName,
		PauseSeconds:      m.PauseSeconds,
		SessionID:         m.SessionID,
		Status:            domain.TrackingStatus(m.Status),
		UpdatedAt:         m.UpdatedAt,
		UserID:            m.UserID,
	}
}

// domainToTrackingModel converts a domain.ActiveTracking to ActiveTrackingModel (GORM)
func domainToTrackingModel(t domain.ActiveTracking) ActiveTrackingModel {
	return ActiveTrackingModel{
		CooldownExpiresAt: t.CooldownExpiresAt,
		EnterAt:           t.EnterAt,
		ExitAt:            t.ExitAt,
		LocationID:        t.LocationID,
		LocationName:      t.LocationName,
		PauseSeconds:      t.PauseSeconds,
		SessionID:         t.SessionID,
		Status:            string(t.Status),
		UpdatedAt:         t.UpdatedAt,
		UserID:            t.UserID,
	}
}

// sessionModelToDomain converts a WorkSessionModel (GORM) to domain.WorkSession
func sessionModelToDomain(m WorkSessionModel) domain.WorkSession {
	var fieldSources map[string]domain.FieldProvenance
	if m.FieldSources != "" {
		if err := json.Unmarshal([]byte(m.FieldSources), &fieldSources); err != nil {
			logging.Logger.Warn("Discarding unreadable field provenance",
				"session_id", m.ID,
				"error", err)
			fieldSources = nil
		}
	}

	return domain.WorkSession{
		BreakSeconds:    m.BreakSeconds,
		Confidence:      m.Confidence,
		CreatedAt:       m.CreatedAt,
		DeletedAt:       m.DeletedAt,
		DurationMinutes: m.DurationMinutes,
		EnterAt:         m.EnterAt,
		ExitAt:          m.ExitAt,
		FieldSources:    fieldSources,
		ID:              m.ID,
		LocationID:      m.LocationID,
		LocationName:    m.LocationName,
		Notes:           m.Notes,
		Source:          domain.Source(m.Source),
		SyncedAt:        m.SyncedAt,
		UpdatedAt:       m.UpdatedAt,
		UserID:          m.UserID,
	}
}

// domainToSessionModel converts a domain.WorkSession to WorkSessionModel (GORM)
func domainToSessionModel(s domain.WorkSession) WorkSessionModel {
	var fieldSources string
	if len(s.FieldSources) > 0 {
		data, err := json.Marshal(s.FieldSources)
		if err == nil {
			fieldSources = string(data)
		}
	}

	return WorkSessionModel{
		BreakSeconds:    s.BreakSeconds,
		Confidence:      s.Confidence,
		CreatedAt:       s.CreatedAt,
		DeletedAt:       s.DeletedAt,
		DurationMinutes: s.DurationMinutes,
		EnterAt:         s.EnterAt,
		ExitAt:          s.ExitAt,
		FieldSources:    fieldSources,
		ID:              s.ID,
		LocationID:      s.LocationID,
		LocationName:    s.LocationName,
		Notes:           s.Notes,
		Source:          string(s.Source),
		SyncedAt:        s.SyncedAt,
		UpdatedAt:       s.UpdatedAt,
		UserID:          s.UserID,
	}
}

// summaryModelToDomain converts a DaySummaryModel (GORM) to domain.DaySummary
func summaryModelToDomain(m DaySummaryModel) domain.DaySummary {
	var flags []string
	if m.Flags != "" {
		if err := json.Unmarshal([]byte(m.Flags), &flags); err != nil {
			logging.Logger.Warn("Discarding unreadable summary flags",
				"user_id", m.UserID,
				"date", m.Date,
				"error", err)
			flags = nil
		}
	}

	sourceMix := make(map[domain.Source]int64)
	if m.SourceMix != "" {
		if err := json.Unmarshal([]byte(m.SourceMix), &sourceMix); err != nil {
			logging.Logger.Warn("Discarding unreadable source mix",
				"user_id", m.UserID,
				"date", m.Date,
				"error", err)
			sourceMix = make(map[domain.Source]int64)
		}
	}

	return domain.DaySummary{
		BreakMinutes:    m.BreakMinutes,
		Date:            m.Date,
		FirstEntry:      m.FirstEntry,
		Flags:           flags,
		LastExit:        m.LastExit,
		Notes:           m.Notes,
		PrimaryLocation: m.PrimaryLocation,
		SessionsCount:   m.SessionsCount,
		SourceMix:       sourceMix,
		SyncedAt:        m.SyncedAt,
		TotalMinutes:    m.TotalMinutes,
		Type:            m.Type,
		UpdatedAt:       m.UpdatedAt,
		UserID:          m.UserID,
	}
}

// domainToSummaryModel converts a domain.DaySummary to DaySummaryModel (GORM)
func domainToSummaryModel(s domain.DaySummary) DaySummaryModel {
	var flags, sourceMix string
	if len(s.Flags) > 0 {
		if data, err := json.Marshal(s.Flags); err == nil {
			flags = string(data)
		}
	}
	if len(s.SourceMix) > 0 {
		if data, err := json.Marshal(s.SourceMix); err == nil {
			sourceMix = string(data)
		}
	}

	return DaySummaryModel{
		BreakMinutes:    s.BreakMinutes,
		Date:            s.Date,
		FirstEntry:      s.FirstEntry,
		Flags:           flags,
		LastExit:        s.LastExit,
		Notes:           s.Notes,
		PrimaryLocation: s.PrimaryLocation,
		SessionsCount:   s.SessionsCount,
		SourceMix:       sourceMix,
		SyncedAt:        s.SyncedAt,
		TotalMinutes:    s.TotalMinutes,
		Type:            s.Type,
		UpdatedAt:       s.UpdatedAt,
		UserID:          s.UserID,
	}
}

// fenceModelToDomain converts a GeofenceLocationModel (GORM) to domain.GeofenceLocation
func fenceModelToDomain(m GeofenceLocationModel) domain.GeofenceLocation {
	return domain.GeofenceLocation{
		Active:    m.Active,
		Color:     m.Color,
		CreatedAt: m.CreatedAt,
		ID:        m.ID,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Name:      m.Name,
		RadiusM:   m.RadiusM,
		UpdatedAt: m.UpdatedAt,
		UserID:    m.UserID,
	}
}

// domainToFenceModel converts a domain.GeofenceLocation to GeofenceLocationModel (GORM)
func domainToFenceModel(f domain.GeofenceLocation) GeofenceLocationModel {
	return GeofenceLocationModel{
		Active:    f.Active,
		Color:     f.Color,
		CreatedAt: f.CreatedAt,
		ID:        f.ID,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Name:      f.Name,
		RadiusM:   f.RadiusM,
		UpdatedAt: f.UpdatedAt,
		UserID:    f.UserID,
	}
}

// correctionModelToDomain converts an AICorrectionModel (GORM) to domain.AICorrection
func correctionModelToDomain(m AICorrectionModel) domain.AICorrection {
	return domain.AICorrection{
		CorrectedValue: m.CorrectedValue,
		CreatedAt:      m.CreatedAt,
		Date:           m.Date,
		Field:          m.Field,
		ID:             m.ID,
		OriginalValue:  m.OriginalValue,
		Reason:         m.Reason,
		Reverted:       m.Reverted,
		SessionID:      m.SessionID,
		Source:         domain.Source(m.Source),
		UserID:         m.UserID,
	}
}

// domainToCorrectionModel converts a domain.AICorrection to AICorrectionModel (GORM)
func domainToCorrectionModel(c domain.AICorrection) AICorrectionModel {
	return AICorrectionModel{
		CorrectedValue: c.CorrectedValue,
		CreatedAt:      c.CreatedAt,
		Date:           c.Date,
		Field:          c.Field,
		ID:             c.ID,
		OriginalValue:  c.OriginalValue,
		Reason:         c.Reason,
		Reverted:       c.Reverted,
		SessionID:      c.SessionID,
		Source:         string(c.Source),
		UserID:         c.UserID,
	}
}

// effectModelToDomain converts a QueuedEffectModel (GORM) to domain.QueuedEffect
func effectModelToDomain(m QueuedEffectModel) domain.QueuedEffect {
	return domain.QueuedEffect{
		CreatedAt:  m.CreatedAt,
		DedupKey:   m.DedupKey,
		ID:         m.ID,
		NextRunAt:  m.NextRunAt,
		Payload:    json.RawMessage(m.Payload),
		Priority:   domain.EffectPriority(m.Priority),
		RetryCount: m.RetryCount,
		Status:     domain.EffectStatus(m.Status),
		Type:       domain.EffectType(m.EffectType),
		UpdatedAt:  m.UpdatedAt,
	}
}

// domainToEffectModel converts a domain.QueuedEffect to QueuedEffectModel (GORM)
func domainToEffectModel(e domain.QueuedEffect) QueuedEffectModel {
	return QueuedEffectModel{
		CreatedAt:  e.CreatedAt,
		DedupKey:   e.DedupKey,
		EffectType: string(e.Type),
		ID:         e.ID,
		NextRunAt:  e.NextRunAt,
		Payload:    string(e.Payload),
		Priority:   string(e.Priority),
		RetryCount: e.RetryCount,
		Status:     string(e.Status),
		UpdatedAt:  e.UpdatedAt,
	}
}
