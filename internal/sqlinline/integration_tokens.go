package sqlinline

// Provider credentials are keyed by provider name; rotating a key overwrites
// the row in place.

const QSelectIntegrationToken = `--sql 3f6b1c2e-9a4d-4e8b-b1f0-5c7d2a9e4b16
select token, updated_at
from integration_tokens
where provider = $1::text;
`

const QUpsertIntegrationToken = `--sql c2a8e5d1-47b3-4f6e-9d0a-8e1f3b5c7a29
insert into integration_tokens (id, provider, token, properties)
values ($1::uuid, $2::text, $3::text, coalesce($4::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`

const QDeleteIntegrationToken = `--sql 9d7e2b4a-6c1f-4a38-8e5b-2f0c9a7d1e63
delete from integration_tokens
where provider = $1::text;
`
