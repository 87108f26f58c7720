package store

// Schema creates the policy persistence tables. Applied by deploy tooling and
// by the integration test container.
//
// Status record tables are append-only; the unique indexes let saves replay
// the full in-memory history with ON CONFLICT DO NOTHING instead of tracking
// which records are new.
const Schema = `
create table if not exists policy (
    reference              uuid primary key,
    product                varchar(20) not null,
    insurance              varchar(20) not null,
    channel                varchar(20) not null,
    phone                  varchar(20) not null,
    prev_global_id         varchar(20),
    downloaded             boolean not null default false,
    premium                integer not null,
    cost                   integer not null,
    reward                 numeric not null,
    retention_reward       numeric,
    conditions             text[],
    status                 varchar(50) not null,
    attributes             jsonb not null,
    lead_reference         uuid not null,
    creator_reference      uuid not null,
    period_type            varchar(20) not null,
    period_value           smallint not null,
    actual_insurance_state uuid not null,
    created_time           timestamptz not null,
    updated_time           timestamptz not null,
    version                bigint not null
);
create index if not exists policy_status_idx on policy (status);
create index if not exists policy_lead_reference_idx on policy (lead_reference);
create index if not exists policy_created_time_idx on policy (created_time);

create table if not exists insurer (
    reference        uuid not null,
    policy_reference uuid not null references policy (reference),
    is_privileged    boolean not null default false,
    title            varchar(100)
);
create index if not exists insurer_policy_reference_idx on insurer (policy_reference);

create table if not exists structure_item (
    item_reference   uuid,
    policy_reference uuid not null references policy (reference),
    type             varchar(50) not null,
    title            varchar(100) not null,
    attrs            jsonb not null
);
create index if not exists structure_item_policy_reference_idx on structure_item (policy_reference);

create table if not exists insurance_state (
    reference           uuid unique not null,
    policy_reference    uuid not null references policy (reference),
    begin_date          date not null,
    end_date            date not null,
    email               varchar(100),
    payment_type        smallint not null,
    redirect_url        text,
    insurance_reference varchar(36) unique,
    global_id           varchar(50) unique,
    status              varchar(50) not null
);
create index if not exists insurance_state_policy_reference_idx on insurance_state (policy_reference);

create table if not exists fin_document (
    reference                 uuid unique not null,
    insurance_state_reference uuid not null references insurance_state (reference),
    type                      varchar(20) not null,
    status                    varchar(20) not null
);
create index if not exists fin_document_state_reference_idx on fin_document (insurance_state_reference);

create table if not exists policy_status_record (
    status           varchar(50) not null,
    timestamp        timestamptz not null,
    policy_reference uuid not null references policy (reference)
);
create unique index if not exists policy_status_record_ux
    on policy_status_record (policy_reference, status, timestamp);

create table if not exists insurance_state_status_record (
    status                    varchar(50) not null,
    timestamp                 timestamptz not null,
    insurance_state_reference uuid not null references insurance_state (reference)
);
create unique index if not exists insurance_state_status_record_ux
    on insurance_state_status_record (insurance_state_reference, status, timestamp);
`
