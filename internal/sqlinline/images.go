package sqlinline

const QInsertImage = `--sql cae59f22-64f1-4195-a4f5-ee1a2221407c
insert into generated_images (
    id, job_id, owner_id, session_id, visual_concept, image_url, prompt, status, error_message,
    source_image_id, regeneration_instruction, model, size, quality, created_at, updated_at
)
values ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::text, $6::text, $7::text, $8::text, $9::text,
        $10::uuid, $11::text, $12::text, $13::text, $14::text, now(), now())
returning created_at, updated_at;
`

const QSelectImage = `--sql b07c3402-3619-45d4-b973-37a120bf8a0d
select id::text, job_id::text, owner_id::text, session_id::text, visual_concept, image_url, prompt, status, error_message, source_image_id::text, regeneration_instruction, model, size, quality, created_at, updated_at
from generated_images
where id = $1::uuid
limit 1;
`

const QUpdateImage = `--sql 0e57cc27-be4d-47df-b6a5-9cab2dd5bf68
update generated_images
set status = coalesce(nullif($2::text, ''), status),
    image_url = coalesce(nullif($3::text, ''), image_url),
    error_message = coalesce(nullif($4::text, ''), error_message),
    updated_at = now()
where id = $1::uuid
returning id::text, job_id::text, owner_id::text, session_id::text, visual_concept, image_url, prompt, status, error_message, source_image_id::text, regeneration_instruction, model, size, quality, created_at, updated_at;
`

const QDeleteImage = `--sql 3d81d4ba-ae60-44a6-8957-f6f9ac4729d0
delete from generated_images
where id = $1::uuid;
`

const QListImagesByJob = `--sql 5a68f7d0-4455-4024-845d-08a348b245fe
select id::text, job_id::text, owner_id::text, session_id::text, visual_concept, image_url, prompt, status, error_message, source_image_id::text, regeneration_instruction, model, size, quality, created_at, updated_at
from generated_images
where job_id = $1::uuid
order by created_at asc, id asc;
`

const QListImages = `--sql f758297e-4208-4f4f-b56d-80c2ffac36d1
select id::text, job_id::text, owner_id::text, session_id::text, visual_concept, image_url, prompt, status, error_message, source_image_id::text, regeneration_instruction, model, size, quality, created_at, updated_at
from generated_images
where ($1::text = '' or owner_id::text = $1::text)
  and ($2::text = '' or session_id::text = $2::text)
order by created_at desc
limit nullif($3::int, 0);
`
