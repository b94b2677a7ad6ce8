package sqlinline

const QInsertJob = `--sql 9c15bacf-4d94-404b-822f-a447e28e00b3
insert into generation_jobs (id, name, kind, owner_id, session_id, style_id, concepts, settings, status, progress, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::uuid, $5::uuid, $6::uuid, $7::jsonb, $8::jsonb, $9::text, $10::int, now(), now())
returning created_at, updated_at;
`

const QSelectJob = `--sql 8330006b-adfc-4c64-8ebd-639213739611
select id::text, name, kind, owner_id::text, session_id::text, style_id::text, concepts, settings, status, progress, completed_count, failed_count, error_message, created_at, updated_at
from generation_jobs
where id = $1::uuid
limit 1;
`

const QListJobs = `--sql 0eb6dfc0-6e31-47c8-b1f5-b058b1ddc6f9
select id::text, name, kind, owner_id::text, session_id::text, style_id::text, concepts, settings, status, progress, completed_count, failed_count, error_message, created_at, updated_at
from generation_jobs
where ($1::text = '' or owner_id::text = $1::text)
  and ($2::text = '' or session_id::text = $2::text)
order by created_at desc
limit nullif($3::int, 0);
`

const QAdvanceJob = `--sql 6489b14b-5e2f-4ff8-b8dd-de290e3a3a17
update generation_jobs
set status = coalesce(nullif($2::text, ''), status),
    progress = greatest(progress, least($3::int, 100)),
    completed_count = greatest(completed_count, $4::int),
    failed_count = greatest(failed_count, $5::int),
    error_message = coalesce(nullif($6::text, ''), error_message),
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed', 'cancelled')
returning id::text, name, kind, owner_id::text, session_id::text, style_id::text, concepts, settings, status, progress, completed_count, failed_count, error_message, created_at, updated_at;
`

const QFailStaleJobs = `--sql 9f2a6cee-f659-4ad4-9413-c36dc0e888a4
update generation_jobs
set status = 'failed',
    error_message = $2::text,
    updated_at = now()
where status in ('pending', 'running')
  and updated_at < $1::timestamptz;
`
