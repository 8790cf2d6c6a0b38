package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// flow holds the collaborators shared by every node.
type flow struct {
	text    ports.TextService
	repo    ports.Repository
	catalog *Catalog

	variant     Variant
	threshold   float64
	maxAttempts int
	maxRetries  int

	logger *slog.Logger
	now    func() time.Time
}

func say(texts ...string) []domain.Message {
	out := make([]domain.Message, 0, len(texts))
	for _, t := range texts {
		out = append(out, domain.AssistantMessage(t))
	}
	return out
}

func heard(in *domain.Input, replies ...string) []domain.Message {
	return append([]domain.Message{domain.UserMessage(in.Text)}, say(replies...)...)
}

// greeting identifies the actor and opens the conversation.
func (f *flow) greeting(ctx context.Context, s domain.ConversationState, _ *domain.Input) (domain.Update, error) {
	profile, err := f.repo.GetUser(ctx, s.UserPhone)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrNotFound):
		profile = nil
	default:
		return domain.Update{}, fmt.Errorf("load user: %w", err)
	}

	draft := map[string]string{"reported_by": s.UserPhone}
	if profile == nil || profile.Name == "" {
		return domain.Update{
			Messages: []domain.Message{
				domain.SystemMessage(actorContext(nil, nil)),
				domain.AssistantMessage(msgNewUser),
			},
			CurrentNode: markerNewUser,
			Draft:       draft,
		}, nil
	}

	recent, err := f.repo.RecentIncidents(ctx, s.UserPhone, recentIncidents)
	if err != nil {
		f.logger.WarnContext(ctx, "recent incidents unavailable", "thread_id", s.UserPhone, "err", err)
		recent = nil
	}
	if profile.Line != "" {
		draft["line"] = profile.Line
	}
	if profile.Shift != "" {
		draft["shift"] = profile.Shift
	}
	return domain.Update{
		Messages: []domain.Message{
			domain.SystemMessage(actorContext(profile, recent)),
			domain.AssistantMessage(greetKnown(profile, recent)),
		},
		Profile:     profile,
		CurrentNode: markerKnownUser,
		Draft:       draft,
	}, nil
}

// registerUser extracts a profile from the actor's answer and stores it.
func (f *flow) registerUser(ctx context.Context, s domain.ConversationState, in *domain.Input) (domain.Update, error) {
	if in == nil {
		return domain.Update{Prompt: promptName}, nil
	}

	raw := strings.TrimSpace(in.Text)
	fields, err := f.text.ExtractProfile(ctx, raw)
	if err != nil {
		f.logger.WarnContext(ctx, "profile extraction failed, using raw text", "thread_id", s.UserPhone, "err", err)
		fields = ports.ProfileFields{Name: raw}
	}
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return f.retry(s, in, msgNameRetry, markerNewUser), nil
	}

	now := f.now()
	profile := domain.UserProfile{
		PhoneNumber: s.UserPhone,
		Name:        name,
		Area:        strings.TrimSpace(fields.Area),
		Shift:       strings.TrimSpace(fields.Shift),
		Role:        strings.TrimSpace(fields.Role),
		Line:        strings.TrimSpace(fields.Line),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.repo.UpsertUser(ctx, profile); err != nil {
		return domain.Update{}, fmt.Errorf("save user: %w", err)
	}

	draft := map[string]string{"reported_by": s.UserPhone}
	if profile.Line != "" {
		draft["line"] = profile.Line
	}
	if profile.Shift != "" {
		draft["shift"] = profile.Shift
	}
	return domain.Update{
		Messages:    heard(in, welcomeRegistered(name)),
		Profile:     &profile,
		CurrentNode: markerRegistered,
		Draft:       draft,
	}, nil
}

// collectDescription records the free-text description plus media text.
func (f *flow) collectDescription(_ context.Context, _ domain.ConversationState, in *domain.Input) (domain.Update, error) {
	if in == nil {
		return domain.Update{Prompt: promptDescription}, nil
	}

	desc := strings.TrimSpace(in.Text)
	var extra []string
	for _, m := range in.Media {
		if m.Description == "" {
			continue
		}
		switch m.Type {
		case domain.MediaImage:
			extra = append(extra, "[Descripción visual: "+m.Description+"]")
		case domain.MediaAudio:
			// A voice note without caption already arrives as the text.
			if m.Description == desc {
				continue
			}
			extra = append(extra, "[Transcripción de audio: "+m.Description+"]")
		}
	}
	if len(extra) > 0 {
		desc = strings.TrimSpace(desc + "\n" + strings.Join(extra, "\n"))
	}

	display := in.Text
	if display == "" {
		display = desc
	}
	return domain.Update{
		Messages:    []domain.Message{domain.UserMessage(display)},
		Description: &desc,
		Media:       in.Media,
		CurrentNode: markerDescribed,
	}, nil
}

// rank runs the safety check and the classifier. A non-empty reason means the
// attempt failed and retryMsg should be shown.
func (f *flow) rank(ctx context.Context, s domain.ConversationState) (cands []domain.Candidate, reason, retryMsg string, err error) {
	desc := strings.TrimSpace(s.Description)
	if desc == "" {
		return nil, "empty description", msgClassifyRetry, nil
	}

	var media []string
	for _, m := range s.Media {
		if m.Description != "" {
			media = append(media, m.Description)
		}
	}
	verdict, err := f.text.SafetyCheck(ctx, desc, media)
	if err != nil {
		return nil, "", "", fmt.Errorf("safety check: %w", err)
	}
	if !verdict.Safe {
		f.logger.InfoContext(ctx, "description rejected", "thread_id", s.UserPhone, "reason", verdict.Reason)
		return nil, "unsafe: " + verdict.Reason, msgUnsafeRetry, nil
	}

	result, err := f.text.Classify(ctx, desc, f.catalog.Text())
	if err != nil {
		f.logger.WarnContext(ctx, "classification failed", "thread_id", s.UserPhone, "err", err)
		return nil, "classification failed", msgClassifyRetry, nil
	}
	cands = append([]domain.Candidate(nil), result.Candidates...)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Confidence > cands[j].Confidence })
	if len(cands) > 3 {
		cands = cands[:3]
	}
	if len(cands) == 0 {
		return nil, "no candidates", msgClassifyRetry, nil
	}
	return cands, "", "", nil
}

func (f *flow) classifyFailed(s domain.ConversationState, reason, retryMsg string) domain.Update {
	msg := retryMsg
	if s.ClassifyAttempts+1 >= f.maxAttempts {
		msg = msgClassifyGiveUp
	}
	return domain.Update{
		Messages:       say(msg),
		Candidates:     domain.Ptr([]domain.Candidate{}),
		CurrentNode:    markerClassifyFailed,
		Error:          reason,
		ClassifyFailed: true,
	}
}

// retry asks the same question again, or says goodbye once the last retry
// is used up.
func (f *flow) retry(s domain.ConversationState, in *domain.Input, msg, marker string) domain.Update {
	if s.RetryAttempts+1 >= f.maxRetries {
		msg = msgRetryGiveUp
	}
	return domain.Update{
		Messages:    heard(in, msg),
		CurrentNode: marker,
		Retry:       true,
	}
}

// classifyDirect accepts the best candidate when it clears the threshold.
func (f *flow) classifyDirect(ctx context.Context, s domain.ConversationState, _ *domain.Input) (domain.Update, error) {
	cands, reason, retryMsg, err := f.rank(ctx, s)
	if err != nil {
		return domain.Update{}, err
	}
	if reason != "" {
		return f.classifyFailed(s, reason, retryMsg), nil
	}

	top := cands[0]
	if top.Confidence < f.threshold {
		return f.classifyFailed(s, fmt.Sprintf("low confidence %.2f for %s", top.Confidence, top.Code), msgClassifyRetry), nil
	}
	t, ok := f.catalog.Lookup(top.Code)
	if !ok {
		return f.classifyFailed(s, "unknown code "+top.Code, msgClassifyRetry), nil
	}

	return domain.Update{
		Messages:     say(classifiedAs(t, top)),
		Candidates:   &cands,
		SelectedCode: domain.Ptr(t.Code),
		Draft:        autofill(t, s.Description),
		CurrentNode:  markerClassified,
		ClearError:   true,
	}, nil
}

// classifyGuided lists the top candidates for the actor to choose from.
func (f *flow) classifyGuided(ctx context.Context, s domain.ConversationState, _ *domain.Input) (domain.Update, error) {
	cands, reason, retryMsg, err := f.rank(ctx, s)
	if err != nil {
		return domain.Update{}, err
	}
	if reason != "" {
		return f.classifyFailed(s, reason, retryMsg), nil
	}
	return domain.Update{
		Messages:    say(candidateList(cands)),
		Candidates:  &cands,
		CurrentNode: markerClassified,
		ClearError:  true,
	}, nil
}

// confirmClassification resolves the actor's pick and fills the draft.
func (f *flow) confirmClassification(ctx context.Context, s domain.ConversationState, in *domain.Input) (domain.Update, error) {
	if in == nil {
		return domain.Update{Prompt: promptSelection}, nil
	}

	idx := ParseSelection(in.Text, len(s.Candidates))
	if idx < 0 {
		n, err := f.text.InterpretSelection(ctx, in.Text, s.Candidates)
		if err != nil {
			f.logger.WarnContext(ctx, "selection interpretation failed", "thread_id", s.UserPhone, "err", err)
			n = -1
		}
		idx = n
	}

	switch {
	case idx == 0:
		return domain.Update{
			Messages:     heard(in, msgDescribeMore),
			Candidates:   domain.Ptr([]domain.Candidate{}),
			SelectedCode: domain.Ptr(""),
			CurrentNode:  markerRetryDesc,
		}, nil
	case idx < 0 || idx > len(s.Candidates):
		return f.retry(s, in, msgSelectionUnclear, markerRetrySelection), nil
	}

	code := s.Candidates[idx-1].Code
	t, ok := f.catalog.Lookup(code)
	if !ok {
		return f.retry(s, in, codeNotFound(code), markerRetrySelection), nil
	}

	fill := autofill(t, s.Description)
	merged := make(map[string]string, len(s.Draft)+len(fill))
	for k, v := range s.Draft {
		merged[k] = v
	}
	for k, v := range fill {
		merged[k] = v
	}
	return domain.Update{
		Messages:      heard(in, selected(t)),
		Draft:         fill,
		SelectedCode:  domain.Ptr(t.Code),
		MissingFields: domain.Ptr(MissingRequired(merged)),
		CurrentNode:   markerSelected,
	}, nil
}

// collectFields asks for one missing field per suspension.
func (f *flow) collectFields(_ context.Context, s domain.ConversationState, in *domain.Input) (domain.Update, error) {
	if len(s.MissingFields) == 0 {
		return domain.Update{
			CurrentField: domain.Ptr(""),
			CurrentNode:  markerFieldsDone,
		}, nil
	}

	field := s.MissingFields[0]
	if in == nil {
		q := fieldQuestion(field)
		return domain.Update{
			Messages:     say(q),
			CurrentField: &field,
			Prompt:       q,
		}, nil
	}

	answer := strings.TrimSpace(in.Text)
	if answer == "" {
		return domain.Update{CurrentNode: markerFieldCollected}, nil
	}
	return domain.Update{
		Messages:      []domain.Message{domain.UserMessage(in.Text)},
		Draft:         map[string]string{field: answer},
		MissingFields: domain.Ptr(append([]string(nil), s.MissingFields[1:]...)),
		CurrentField:  &field,
		CurrentNode:   markerFieldCollected,
	}, nil
}

// confirmation shows the summary of the draft.
func (f *flow) confirmation(_ context.Context, s domain.ConversationState, _ *domain.Input) (domain.Update, error) {
	fill := map[string]string{}
	if s.Draft["date_time_reported"] == "" {
		fill["date_time_reported"] = f.now().Format(time.RFC3339)
	}
	if s.Draft["status"] == "" {
		fill["status"] = string(domain.StatusOpen)
	}
	merged := make(map[string]string, len(s.Draft)+len(fill))
	for k, v := range s.Draft {
		merged[k] = v
	}
	for k, v := range fill {
		merged[k] = v
	}
	return domain.Update{
		Messages:    say(summary(merged)),
		Draft:       fill,
		CurrentNode: markerSummarized,
	}, nil
}

// processConfirmation reads confirm, edit or cancel.
func (f *flow) processConfirmation(_ context.Context, _ domain.ConversationState, in *domain.Input) (domain.Update, error) {
	if in == nil {
		return domain.Update{Prompt: promptConfirmation}, nil
	}
	switch ParseDecision(in.Text) {
	case DecisionAffirm:
		return domain.Update{
			Messages:    heard(in),
			Confirmed:   domain.Ptr(true),
			CurrentNode: markerAffirmed,
		}, nil
	case DecisionEdit:
		return domain.Update{
			Messages:    heard(in, msgAskEditField),
			Confirmed:   domain.Ptr(false),
			CurrentNode: markerEditRequested,
		}, nil
	default:
		return domain.Update{
			Messages:    heard(in, msgCancelled),
			Confirmed:   domain.Ptr(false),
			CurrentNode: markerCancelled,
		}, nil
	}
}

// edit maps the named field back into the missing list.
func (f *flow) edit(_ context.Context, s domain.ConversationState, in *domain.Input) (domain.Update, error) {
	if in == nil {
		return domain.Update{Prompt: promptEditField}, nil
	}
	field, ok := ResolveField(in.Text)
	if !ok {
		return f.retry(s, in, msgUnknownField, markerFieldUnknown), nil
	}
	return domain.Update{
		Messages:      heard(in),
		MissingFields: domain.Ptr([]string{field}),
		CurrentField:  domain.Ptr(""),
		CurrentNode:   markerFieldRecognized,
	}, nil
}

// save persists the draft. A draft that does not validate ends the thread in
// the error terminal; backend failures are returned so the step can be retried.
func (f *flow) save(ctx context.Context, s domain.ConversationState, _ *domain.Input) (domain.Update, error) {
	rec, err := f.record(s)
	if err != nil {
		return f.invalidRecord(ctx, s, err), nil
	}
	if step, ok := domain.StepFromContext(ctx); ok {
		rec.StepKey = step.Key()
	}
	id, err := f.repo.SaveIncident(ctx, rec)
	duplicate := errors.Is(err, ports.ErrDuplicate)
	switch {
	case duplicate:
		if !f.adopt(ctx, rec, id) {
			return domain.Update{}, fmt.Errorf("incident %d owned by a concurrent run: %w", id, domain.ErrStaleCheckpoint)
		}
		f.logger.InfoContext(ctx, "incident already saved by this step", "thread_id", s.UserPhone, "incident_id", id)
	case errors.Is(err, domain.ErrInvalidRecord):
		return f.invalidRecord(ctx, s, err), nil
	case err != nil:
		return domain.Update{}, fmt.Errorf("save incident: %w", err)
	default:
		f.logger.InfoContext(ctx, "incident saved", "thread_id", s.UserPhone, "incident_id", id, "code", rec.IncidentCode)
	}

	for _, m := range s.Media {
		if duplicate {
			break
		}
		if m.FilePath == "" {
			continue
		}
		mediaType := m.Type
		if mediaType == "" {
			mediaType = "unknown"
		}
		_, err := f.repo.SaveAttachment(ctx, domain.Attachment{
			IncidentID:   id,
			FilePath:     m.FilePath,
			MediaType:    mediaType,
			OriginalName: m.Filename,
			Description:  m.Description,
		})
		if err != nil {
			f.logger.WarnContext(ctx, "attachment not saved", "thread_id", s.UserPhone, "incident_id", id, "file", m.FilePath, "err", err)
		}
	}

	u := domain.Update{
		Messages:    say(savedMessage(id, rec)),
		IncidentID:  id,
		CurrentNode: markerSaved,
		ClearError:  true,
	}
	if p := s.Profile; !duplicate && p != nil && ((p.Line == "" && rec.Line != "") || (p.Shift == "" && rec.Shift != "")) {
		updated := *p
		if updated.Line == "" {
			updated.Line = rec.Line
		}
		if updated.Shift == "" {
			updated.Shift = rec.Shift
		}
		updated.UpdatedAt = f.now()
		if err := f.repo.UpsertUser(ctx, updated); err != nil {
			f.logger.WarnContext(ctx, "profile not updated", "thread_id", s.UserPhone, "err", err)
		} else {
			u.Profile = &updated
		}
	}
	return u, nil
}

// adopt reports whether the incident another run saved for this step can
// stand for rec: it carries the same description, or its run is gone because
// it never advanced the checkpoint within stepOwnerTimeout.
func (f *flow) adopt(ctx context.Context, rec domain.IncidentRecord, id int64) bool {
	recent, err := f.repo.RecentIncidents(ctx, rec.ReportedBy, 0)
	if err != nil {
		f.logger.WarnContext(ctx, "duplicate incident not inspected", "incident_id", id, "err", err)
		return true
	}
	for _, existing := range recent {
		if existing.ID != id {
			continue
		}
		return existing.Description == rec.Description || time.Since(existing.CreatedAt) > stepOwnerTimeout
	}
	return true
}

func (f *flow) invalidRecord(ctx context.Context, s domain.ConversationState, err error) domain.Update {
	f.logger.WarnContext(ctx, "incident record rejected", "thread_id", s.UserPhone, "err", err)
	return domain.Update{
		Messages:    say(recordError(err)),
		CurrentNode: markerRecordInvalid,
		Error:       err.Error(),
	}
}

// record decodes the draft into a validated IncidentRecord.
func (f *flow) record(s domain.ConversationState) (domain.IncidentRecord, error) {
	var rec domain.IncidentRecord
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rec,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return rec, err
	}
	if err := dec.Decode(s.Draft); err != nil {
		return rec, fmt.Errorf("decode draft: %w", err)
	}

	if rec.ReportedBy == "" {
		rec.ReportedBy = s.UserPhone
	}
	if rec.Description == "" {
		rec.Description = s.Description
	}
	if rec.Severity == "" {
		rec.Severity = domain.SeverityMedium
	}
	if rec.Status == "" {
		rec.Status = domain.StatusOpen
	}
	if rec.TicketType == "" {
		rec.TicketType = domain.TicketIncidente
	}
	rec.ReportedAt = f.now()
	if raw := s.Draft["date_time_reported"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.ReportedAt = t
		}
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

func autofill(t domain.IncidentTemplate, description string) map[string]string {
	return map[string]string{
		"incident_code":    t.Code,
		"incident_name":    t.Name,
		"category":         string(t.Category),
		"sub_category":     t.SubCategory,
		"severity":         string(t.Severity),
		"ticket_type":      string(t.TicketType),
		"sla":              t.SLA,
		"immediate_action": t.ImmediateAction,
		"description":      description,
	}
}
