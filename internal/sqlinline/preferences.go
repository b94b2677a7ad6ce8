package sqlinline

const QSelectPreferences = `--sql 3d353bca-29d4-4208-9ae7-a7038ca92d18
select preferences, updated_at
from user_preferences
where user_id = $1::uuid
limit 1;
`

const QUpsertPreferences = `--sql 98253634-050f-41cf-b04f-6b877416fdae
insert into user_preferences (user_id, preferences, updated_at)
values ($1::uuid, $2::jsonb, now())
on conflict (user_id) do update set
    preferences = excluded.preferences,
    updated_at = now()
returning updated_at;
`
