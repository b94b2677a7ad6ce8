package sqlinline

const QInsertStyle = `--sql 23ebaab3-020e-4e70-9d6c-70661f0ec2fd
insert into image_styles (id, name, description, style_prompt, style_data, reference_image_url, preview_image_url, created_by, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::jsonb, $6::text, $7::text, $8::uuid, now(), now())
returning created_at, updated_at;
`

const QSelectStyle = `--sql 1f4dd8ef-b2df-46e7-a064-1db0f941f706
select id::text, name, description, style_prompt, style_data, reference_image_url, preview_image_url, created_by::text, created_at, updated_at
from image_styles
where id = $1::uuid
limit 1;
`

const QUpdateStyle = `--sql 4703889f-db82-4591-b365-4032524db1a0
update image_styles
set name = $2::text,
    description = $3::text,
    style_prompt = $4::text,
    style_data = $5::jsonb,
    reference_image_url = $6::text,
    preview_image_url = $7::text,
    updated_at = now()
where id = $1::uuid
returning created_by::text, created_at, updated_at;
`

const QDeleteStyle = `--sql b02bfb99-8f67-49fd-94fc-7a1fcd0abb67
delete from image_styles
where id = $1::uuid;
`

const QListStyles = `--sql 9af5168d-3b71-4d51-a599-d4bd33894ea0
select id::text, name, description, style_prompt, style_data, reference_image_url, preview_image_url, created_by::text, created_at, updated_at
from image_styles
where ($1::text = '' or created_by::text = $1::text)
order by created_at desc;
`
