package sqlinline

const QInsertUser = `--sql 5a1fabca-d906-4ecb-a7a7-f5a8b0c685e5
insert into users (id, email, password_hash, role, is_active, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::boolean, now(), now())
returning created_at, updated_at;
`

const QSelectUserByID = `--sql 6ba7ac73-6fd8-4671-aafc-ef35532a5990
select id::text, email, password_hash, role, is_active, last_login, created_at, updated_at
from users
where id = $1::uuid
limit 1;
`

const QSelectUserByEmail = `--sql 27e8a012-3f5c-4624-b5b7-e6bce2036b27
select id::text, email, password_hash, role, is_active, last_login, created_at, updated_at
from users
where lower(email) = lower($1::text)
limit 1;
`

const QListUsers = `--sql e9d85172-eb20-491f-818e-def63a79b0e6
select id::text, email, password_hash, role, is_active, last_login, created_at, updated_at
from users
order by created_at asc;
`

const QSetUserActive = `--sql 496c2d52-e8d7-4b9f-94d0-82f2201b640a
update users
set is_active = $2::boolean, updated_at = now()
where id = $1::uuid
returning id::text, email, password_hash, role, is_active, last_login, created_at, updated_at;
`

const QSetUserRole = `--sql 924e1e9d-db60-4606-a31a-54a2cbd51396
update users
set role = $2::text, updated_at = now()
where id = $1::uuid
returning id::text, email, password_hash, role, is_active, last_login, created_at, updated_at;
`

const QTouchUserLogin = `--sql d9cba9f7-e0c0-4673-a7f2-fc592f653f1a
update users
set last_login = $2::timestamptz
where id = $1::uuid;
`
