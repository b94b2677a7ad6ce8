package sqlinline

const QInsertSystemPrompt = `--sql 7e1bc25a-2146-4775-bae1-c40d86ecd418
insert into system_prompts (id, name, category, content, is_default, owner_id, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::boolean, $6::uuid, now(), now())
returning created_at, updated_at;
`

const QSelectSystemPrompt = `--sql 76cc505b-f9d3-4a7f-8425-a36285820897
select id::text, name, category, content, is_default, owner_id::text, created_at, updated_at
from system_prompts
where id = $1::uuid
limit 1;
`

const QUpdateSystemPrompt = `--sql 99e5f314-8d01-4c9e-9ebc-bba4890d3b44
update system_prompts
set name = $2::text,
    category = $3::text,
    content = $4::text,
    is_default = $5::boolean,
    updated_at = now()
where id = $1::uuid
returning owner_id::text, created_at, updated_at;
`

const QDeleteSystemPrompt = `--sql 0e7ee410-44fd-4064-acfb-8d7090f62cdc
delete from system_prompts
where id = $1::uuid;
`

const QListSystemPrompts = `--sql 8c08ad5b-59a2-4c9e-b8d6-8bfe5361ccb2
select id::text, name, category, content, is_default, owner_id::text, created_at, updated_at
from system_prompts
where ($1::text = '' or owner_id is null or owner_id::text = $1::text)
  and ($2::text = '' or category = $2::text)
order by created_at asc;
`

const QClearSystemPromptDefault = `--sql 36164d80-e4ae-4593-919e-cf23c3dbdfb3
update system_prompts
set is_default = false, updated_at = now()
where category = $1::text
  and owner_id is not distinct from $2::uuid
  and id <> $3::uuid
  and is_default;
`

const QSelectDefaultSystemPrompt = `--sql 14a061ab-4892-4cec-9ba3-24cadba4a59a
select id::text, name, category, content, is_default, owner_id::text, created_at, updated_at
from system_prompts
where category = $2::text
  and is_default
  and (owner_id is null or owner_id::text = $1::text)
order by (owner_id is null) asc, updated_at desc
limit 1;
`
