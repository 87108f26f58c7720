package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"polis/internal/policy/models"
	"polis/pkg/platform/sentinel"
)

// Postgres persists policy aggregates across the policy, insurer,
// structure_item, insurance_state, fin_document and status record tables.
// Saves are guarded by an optimistic version column on the policy row.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a postgres-backed policy repository.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const getPolicySQL = `
select p.product, p.insurance, p.channel, p.phone,
       coalesce(p.prev_global_id, ''), p.downloaded, p.premium, p.cost,
       p.reward::text, p.retention_reward::text, coalesce(p.conditions, '{}'),
       p.status, p.attributes, p.lead_reference::text, p.creator_reference::text,
       p.period_type, p.period_value, p.actual_insurance_state::text,
       p.created_time, p.updated_time, p.version,
       i.reference::text, i.is_privileged, coalesce(i.title, '')
from policy p
join insurer i on i.policy_reference = p.reference
where p.reference = $1::uuid`

// Get loads the whole aggregate and the version it was read at.
func (s *Postgres) Get(ctx context.Context, reference uuid.UUID) (*models.Policy, int64, error) {
	var (
		product, carrier, channel, phone, prevGlobalID    string
		downloaded                                        bool
		premium, cost                                     int
		rewardRaw                                         string
		retentionRaw                                      *string
		conditions                                        []string
		status                                            string
		attributesRaw                                     []byte
		leadRef, creatorRef                               string
		periodType                                        string
		periodValue                                       int16
		actualRef                                         string
		createdTime, updatedTime                          time.Time
		version                                           int64
		insurerRef                                        string
		insurerPrivileged                                 bool
		insurerTitle                                      string
	)
	err := s.pool.QueryRow(ctx, getPolicySQL, reference.String()).Scan(
		&product, &carrier, &channel, &phone,
		&prevGlobalID, &downloaded, &premium, &cost,
		&rewardRaw, &retentionRaw, &conditions,
		&status, &attributesRaw, &leadRef, &creatorRef,
		&periodType, &periodValue, &actualRef,
		&createdTime, &updatedTime, &version,
		&insurerRef, &insurerPrivileged, &insurerTitle,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get policy: %w", err)
	}

	reward, err := decimal.NewFromString(rewardRaw)
	if err != nil {
		return nil, 0, fmt.Errorf("parse policy reward: %w", err)
	}
	var retentionReward decimal.NullDecimal
	if retentionRaw != nil {
		d, err := decimal.NewFromString(*retentionRaw)
		if err != nil {
			return nil, 0, fmt.Errorf("parse policy retention reward: %w", err)
		}
		retentionReward = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	var attributes map[string]any
	if err := json.Unmarshal(attributesRaw, &attributes); err != nil {
		return nil, 0, fmt.Errorf("parse policy attributes: %w", err)
	}
	var prevPolicy *models.PrevPolicy
	if prevGlobalID != "" {
		prevPolicy = &models.PrevPolicy{PrevGlobalID: prevGlobalID, Carrier: models.Carrier(carrier)}
	}

	structure, err := s.loadStructure(ctx, reference)
	if err != nil {
		return nil, 0, err
	}
	insuranceStates, err := s.loadInsuranceStates(ctx, reference)
	if err != nil {
		return nil, 0, err
	}
	statusRecords, err := s.loadPolicyStatusRecords(ctx, reference)
	if err != nil {
		return nil, 0, err
	}

	state := models.RestorePolicyState(
		reference,
		models.Product(product),
		models.Carrier(carrier),
		models.Status(status),
		channel, phone,
		prevPolicy,
		downloaded,
		premium, cost,
		reward,
		retentionReward,
		conditions,
		attributes,
		structure,
		models.Insurer{Title: insurerTitle, IsPrivileged: insurerPrivileged, Reference: mustUUID(insurerRef)},
		mustUUID(leadRef), mustUUID(creatorRef),
		models.Period{Type: models.PeriodType(periodType), Value: int(periodValue)},
		mustUUID(actualRef),
		statusRecords,
		insuranceStates,
		createdTime, updatedTime,
	)
	return models.RestorePolicy(state), version, nil
}

// GetReferenceByInsuranceReference resolves the owning policy of a carrier
// correlation id.
func (s *Postgres) GetReferenceByInsuranceReference(ctx context.Context, insuranceReference string) (uuid.UUID, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`select policy_reference::text from insurance_state where insurance_reference = $1`,
		insuranceReference,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, sentinel.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve policy by insurance reference: %w", err)
	}
	return mustUUID(raw), nil
}

// Create inserts a fresh aggregate at version 1 together with its insurer,
// structure, insurance states and status records.
func (s *Postgres) Create(ctx context.Context, policy *models.Policy) error {
	state := policy.State()
	attributes, err := json.Marshal(state.Attributes)
	if err != nil {
		return fmt.Errorf("marshal policy attributes: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create policy: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
insert into policy(reference, product, insurance, channel, phone, prev_global_id, downloaded,
                   premium, cost, reward, retention_reward, conditions, status, attributes,
                   lead_reference, creator_reference, period_type, period_value,
                   actual_insurance_state, created_time, updated_time, version)
values ($1::uuid, $2, $3, $4, $5, nullif($6, ''), $7,
        $8, $9, $10::numeric, $11::numeric, $12, $13, $14,
        $15::uuid, $16::uuid, $17, $18,
        $19::uuid, $20, $21, 1)`,
		state.Reference.String(), string(state.Product), string(state.Carrier), state.Channel,
		state.Phone, state.PrevGlobalID(), state.Downloaded,
		state.Premium, state.Cost, state.Reward.String(), nullDecimal(state.RetentionReward),
		state.Conditions, string(state.Status), attributes,
		state.LeadReference.String(), state.CreatorReference.String(),
		string(state.Period.Type), int16(state.Period.Value),
		state.ActualInsuranceState.Reference.String(), state.CreatedTime, state.UpdatedTime,
	)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}

	_, err = tx.Exec(ctx, `
insert into insurer(reference, policy_reference, is_privileged, title)
values ($1::uuid, $2::uuid, $3, $4)`,
		state.Insurer.Reference.String(), state.Reference.String(),
		state.Insurer.IsPrivileged, state.Insurer.Title,
	)
	if err != nil {
		return fmt.Errorf("insert policy insurer: %w", err)
	}

	for _, item := range state.Structure {
		attrs, err := structureAttrs(item)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
insert into structure_item(item_reference, policy_reference, type, title, attrs)
values (nullif($1, '')::uuid, $2::uuid, $3, $4, $5)`,
			itemReference(item), state.Reference.String(), string(item.Type), item.Title, attrs,
		)
		if err != nil {
			return fmt.Errorf("insert policy structure item: %w", err)
		}
	}

	if err := s.writeInsuranceStates(ctx, tx, state); err != nil {
		return err
	}
	if err := s.writeStatusRecords(ctx, tx, state); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create policy: %w", err)
	}
	return nil
}

// Save updates the aggregate guarded by the read version. A stale version
// fails with sentinel.ErrVersionConflict without touching anything.
func (s *Postgres) Save(ctx context.Context, policy *models.Policy, version int64) error {
	state := policy.State()
	attributes, err := json.Marshal(state.Attributes)
	if err != nil {
		return fmt.Errorf("marshal policy attributes: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save policy: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
update policy
set downloaded = $3,
    premium = $4,
    cost = $5,
    reward = $6::numeric,
    retention_reward = $7::numeric,
    status = $8,
    attributes = $9,
    actual_insurance_state = $10::uuid,
    updated_time = $11,
    version = version + 1
where reference = $1::uuid and version = $2`,
		state.Reference.String(), version,
		state.Downloaded, state.Premium, state.Cost,
		state.Reward.String(), nullDecimal(state.RetentionReward),
		string(state.Status), attributes,
		state.ActualInsuranceState.Reference.String(), state.UpdatedTime,
	)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrVersionConflict
	}

	if err := s.writeInsuranceStates(ctx, tx, state); err != nil {
		return err
	}
	if err := s.writeStatusRecords(ctx, tx, state); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save policy: %w", err)
	}
	return nil
}

func (s *Postgres) writeInsuranceStates(ctx context.Context, tx pgx.Tx, state *models.PolicyState) error {
	for _, insState := range state.InsuranceStates.States() {
		_, err := tx.Exec(ctx, `
insert into insurance_state(reference, policy_reference, begin_date, end_date, email, payment_type,
                            redirect_url, insurance_reference, global_id, status)
values ($1::uuid, $2::uuid, $3, $4, nullif($5, ''), $6, nullif($7, ''), nullif($8, ''), nullif($9, ''), $10)
on conflict (reference) do update
set begin_date = excluded.begin_date,
    end_date = excluded.end_date,
    email = excluded.email,
    payment_type = excluded.payment_type,
    redirect_url = excluded.redirect_url,
    insurance_reference = excluded.insurance_reference,
    global_id = excluded.global_id,
    status = excluded.status`,
			insState.Reference.String(), state.Reference.String(),
			insState.BeginDate, state.Period.EndDate(insState.BeginDate),
			insState.Email, int16(insState.PaymentType),
			insState.RedirectURL, insState.InsuranceReference, insState.GlobalID,
			string(insState.Status),
		)
		if err != nil {
			return fmt.Errorf("upsert insurance state: %w", err)
		}

		for _, doc := range insState.Documents.Documents() {
			_, err := tx.Exec(ctx, `
insert into fin_document(reference, insurance_state_reference, type, status)
values ($1::uuid, $2::uuid, $3, $4)
on conflict (reference) do update set status = excluded.status`,
				doc.Reference.String(), insState.Reference.String(),
				string(doc.Type), string(doc.Status),
			)
			if err != nil {
				return fmt.Errorf("upsert fin document: %w", err)
			}
		}
	}
	return nil
}

func (s *Postgres) writeStatusRecords(ctx context.Context, tx pgx.Tx, state *models.PolicyState) error {
	for _, record := range state.History.Records() {
		_, err := tx.Exec(ctx, `
insert into policy_status_record(status, timestamp, policy_reference)
values ($1, $2, $3::uuid)
on conflict do nothing`,
			string(record.Status), record.Timestamp, state.Reference.String(),
		)
		if err != nil {
			return fmt.Errorf("insert policy status record: %w", err)
		}
	}
	for _, insState := range state.InsuranceStates.States() {
		for _, record := range insState.History.Records() {
			_, err := tx.Exec(ctx, `
insert into insurance_state_status_record(status, timestamp, insurance_state_reference)
values ($1, $2, $3::uuid)
on conflict do nothing`,
				string(record.Status), record.Timestamp, insState.Reference.String(),
			)
			if err != nil {
				return fmt.Errorf("insert insurance state status record: %w", err)
			}
		}
	}
	return nil
}

func (s *Postgres) loadStructure(ctx context.Context, reference uuid.UUID) ([]models.StructureItem, error) {
	rows, err := s.pool.Query(ctx, `
select coalesce(item_reference::text, ''), type, title, attrs
from structure_item
where policy_reference = $1::uuid`, reference.String())
	if err != nil {
		return nil, fmt.Errorf("load policy structure: %w", err)
	}
	defer rows.Close()

	var structure []models.StructureItem
	for rows.Next() {
		var (
			itemRef, itemType, title string
			attrs                    []byte
		)
		if err := rows.Scan(&itemRef, &itemType, &title, &attrs); err != nil {
			return nil, fmt.Errorf("scan structure item: %w", err)
		}
		item := models.StructureItem{Title: title, Type: models.StructureItemType(itemType)}
		if itemRef != "" {
			item.ItemReference = mustUUID(itemRef)
		}
		if err := unmarshalStructureAttrs(&item, attrs); err != nil {
			return nil, err
		}
		structure = append(structure, item)
	}
	return structure, rows.Err()
}

func (s *Postgres) loadInsuranceStates(ctx context.Context, reference uuid.UUID) ([]*models.InsuranceState, error) {
	rows, err := s.pool.Query(ctx, `
select reference::text, begin_date, coalesce(email, ''), payment_type,
       coalesce(redirect_url, ''), coalesce(insurance_reference, ''), coalesce(global_id, ''), status
from insurance_state
where policy_reference = $1::uuid`, reference.String())
	if err != nil {
		return nil, fmt.Errorf("load insurance states: %w", err)
	}
	defer rows.Close()

	states := make(map[uuid.UUID]*models.InsuranceState)
	var ordered []*models.InsuranceState
	for rows.Next() {
		var (
			ref, email, redirectURL, insuranceRef, globalID, status string
			beginDate                                               time.Time
			paymentType                                             int16
		)
		err := rows.Scan(&ref, &beginDate, &email, &paymentType, &redirectURL, &insuranceRef, &globalID, &status)
		if err != nil {
			return nil, fmt.Errorf("scan insurance state: %w", err)
		}
		insState := &models.InsuranceState{
			Reference:          mustUUID(ref),
			BeginDate:          models.Date(beginDate),
			Email:              email,
			PaymentType:        models.PaymentType(paymentType),
			Status:             models.Status(status),
			RedirectURL:        redirectURL,
			InsuranceReference: insuranceRef,
			GlobalID:           globalID,
			History:            models.NewStatusHistory(),
			Documents:          models.NewDocumentCollection(),
		}
		states[insState.Reference] = insState
		ordered = append(ordered, insState)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadDocuments(ctx, reference, states); err != nil {
		return nil, err
	}
	if err := s.loadStateStatusRecords(ctx, reference, states); err != nil {
		return nil, err
	}
	return ordered, nil
}

func (s *Postgres) loadDocuments(ctx context.Context, reference uuid.UUID, states map[uuid.UUID]*models.InsuranceState) error {
	rows, err := s.pool.Query(ctx, `
select d.reference::text, d.insurance_state_reference::text, d.type, d.status
from fin_document d
join insurance_state st on st.reference = d.insurance_state_reference
where st.policy_reference = $1::uuid`, reference.String())
	if err != nil {
		return fmt.Errorf("load fin documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref, stateRef, docType, status string
		if err := rows.Scan(&ref, &stateRef, &docType, &status); err != nil {
			return fmt.Errorf("scan fin document: %w", err)
		}
		if insState, ok := states[mustUUID(stateRef)]; ok {
			insState.Documents.Add(&models.Document{
				Reference: mustUUID(ref),
				Type:      models.DocumentType(docType),
				Status:    models.DocumentStatus(status),
			})
		}
	}
	return rows.Err()
}

func (s *Postgres) loadStateStatusRecords(ctx context.Context, reference uuid.UUID, states map[uuid.UUID]*models.InsuranceState) error {
	rows, err := s.pool.Query(ctx, `
select r.insurance_state_reference::text, r.status, r.timestamp
from insurance_state_status_record r
join insurance_state st on st.reference = r.insurance_state_reference
where st.policy_reference = $1::uuid
order by r.timestamp`, reference.String())
	if err != nil {
		return fmt.Errorf("load insurance state status records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stateRef, status string
			timestamp        time.Time
		)
		if err := rows.Scan(&stateRef, &status, &timestamp); err != nil {
			return fmt.Errorf("scan insurance state status record: %w", err)
		}
		if insState, ok := states[mustUUID(stateRef)]; ok {
			insState.History.Add(models.Status(status), timestamp)
		}
	}
	return rows.Err()
}

func (s *Postgres) loadPolicyStatusRecords(ctx context.Context, reference uuid.UUID) ([]models.StatusRecord, error) {
	rows, err := s.pool.Query(ctx, `
select status, timestamp
from policy_status_record
where policy_reference = $1::uuid
order by timestamp`, reference.String())
	if err != nil {
		return nil, fmt.Errorf("load policy status records: %w", err)
	}
	defer rows.Close()

	var records []models.StatusRecord
	for rows.Next() {
		var (
			status    string
			timestamp time.Time
		)
		if err := rows.Scan(&status, &timestamp); err != nil {
			return nil, fmt.Errorf("scan policy status record: %w", err)
		}
		records = append(records, models.StatusRecord{Status: models.Status(status), Timestamp: timestamp})
	}
	return records, rows.Err()
}

func structureAttrs(item models.StructureItem) ([]byte, error) {
	var attrs any
	switch item.Type {
	case models.StructureDriver:
		attrs = item.Driver
	case models.StructureVehicle:
		attrs = item.Vehicle
	case models.StructureLimit:
		attrs = item.Limit
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal structure attrs: %w", err)
	}
	return data, nil
}

func unmarshalStructureAttrs(item *models.StructureItem, data []byte) error {
	var err error
	switch item.Type {
	case models.StructureDriver:
		item.Driver = &models.StructureDriverAttrs{}
		err = json.Unmarshal(data, item.Driver)
	case models.StructureVehicle:
		item.Vehicle = &models.StructureVehicleAttrs{}
		err = json.Unmarshal(data, item.Vehicle)
	case models.StructureLimit:
		item.Limit = &models.StructureLimitAttrs{}
		err = json.Unmarshal(data, item.Limit)
	}
	if err != nil {
		return fmt.Errorf("unmarshal structure attrs: %w", err)
	}
	return nil
}

func itemReference(item models.StructureItem) string {
	if item.ItemReference == uuid.Nil {
		return ""
	}
	return item.ItemReference.String()
}

func nullDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func mustUUID(raw string) uuid.UUID {
	return uuid.MustParse(raw)
}
