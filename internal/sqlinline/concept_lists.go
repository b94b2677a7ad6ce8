package sqlinline

const QInsertConceptList = `--sql b1c9cfca-58f9-4ccd-85ae-1ad603adaca8
insert into concept_lists (id, company_name, marketing_content, concepts, parameters, owner_id, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::jsonb, $5::jsonb, $6::uuid, now(), now())
returning created_at, updated_at;
`

const QSelectConceptList = `--sql d10c2214-5c26-4ac7-85cf-3594c6a8bb45
select id::text, company_name, marketing_content, concepts, parameters, owner_id::text, created_at, updated_at
from concept_lists
where id = $1::uuid
limit 1;
`

const QUpdateConceptList = `--sql 29e7dc55-7917-4c5c-b8a4-723b9700d140
update concept_lists
set company_name = $2::text,
    marketing_content = $3::text,
    concepts = $4::jsonb,
    parameters = $5::jsonb,
    updated_at = now()
where id = $1::uuid
returning owner_id::text, created_at, updated_at;
`

const QDeleteConceptList = `--sql f82a450e-0817-46ec-b3d8-e39a37abbfe1
delete from concept_lists
where id = $1::uuid;
`

const QListConceptLists = `--sql 24fa47a5-e8aa-4382-800d-390272cac226
select id::text, company_name, marketing_content, concepts, parameters, owner_id::text, created_at, updated_at
from concept_lists
where ($1::text = '' or owner_id::text = $1::text)
order by created_at desc;
`
