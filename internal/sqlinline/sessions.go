package sqlinline

const QInsertSession = `--sql 3fd4755a-6fd4-42ff-8128-02824e7885bf
insert into project_sessions (id, name, description, owner_id, is_temporary, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::uuid, $5::boolean, now(), now())
returning created_at, updated_at;
`

const QSelectSession = `--sql aecd3414-da17-45a2-938b-1ae05e90208f
select id::text, name, description, owner_id::text, is_temporary, created_at, updated_at
from project_sessions
where id = $1::uuid
limit 1;
`

const QUpdateSession = `--sql 64c359f2-4054-461d-8c0f-08dfa5fa593a
update project_sessions
set name = $2::text,
    description = $3::text,
    is_temporary = $4::boolean,
    updated_at = now()
where id = $1::uuid
returning owner_id::text, created_at, updated_at;
`

const QDeleteSession = `--sql 9634e86f-090a-4fd0-90d8-46a8029b1382
delete from project_sessions
where id = $1::uuid;
`

const QListSessions = `--sql 1507579a-3ad7-4a3d-809b-6b6fae23eb62
select id::text, name, description, owner_id::text, is_temporary, created_at, updated_at
from project_sessions
where ($1::text = '' or owner_id::text = $1::text)
order by created_at desc;
`

const QDeleteTemporarySessions = `--sql 92134991-85bf-4e41-b563-6ed4ad46deb9
delete from project_sessions
where is_temporary
  and ($1::text = '' or owner_id::text = $1::text)
  and ($2::timestamptz is null or created_at < $2::timestamptz);
`
