// Package memkv реализует потокобезопасное in-memory хранилище ключ/значение с TTL,
// на котором держатся таблицы соседей узлов.
//
// Основные свойства:
//   - Шардированная карта с RW-мьютексами (по умолчанию 16 шардов)
//   - Ленивое истечение TTL при чтении и явная очистка через Sweep
//   - Подменяемый источник времени (виртуальное время симуляции)
//   - Опциональный лимит по общему объёму данных (Options.MaxBytes)
//   - Перебор ключей по префиксу
package memkv
